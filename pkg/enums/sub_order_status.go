package enums

// SubOrderStatus is the persisted status column of a sub-order. Besides the
// domain values below, intermediate courier codes (e.g. "SH003") are stored
// verbatim; internal/fulfillment classifies both.
type SubOrderStatus string

const (
	SubOrderStatusAwaitingPackaging SubOrderStatus = "awaiting_packaging"
	SubOrderStatusRecordCreated     SubOrderStatus = "record_created"
	SubOrderStatusSellerCancelled   SubOrderStatus = "seller_cancelled"
	SubOrderStatusDelivered         SubOrderStatus = "delivered"
	SubOrderStatusReturned          SubOrderStatus = "returned"
)

var domainSubOrderStatuses = []SubOrderStatus{
	SubOrderStatusAwaitingPackaging,
	SubOrderStatusRecordCreated,
	SubOrderStatusSellerCancelled,
	SubOrderStatusDelivered,
	SubOrderStatusReturned,
}

// String implements fmt.Stringer.
func (s SubOrderStatus) String() string {
	return string(s)
}

// IsDomain reports whether s is one of the platform-defined statuses rather
// than a courier pass-through code.
func (s SubOrderStatus) IsDomain() bool {
	for _, candidate := range domainSubOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s SubOrderStatus) IsTerminal() bool {
	switch s {
	case SubOrderStatusSellerCancelled, SubOrderStatusDelivered, SubOrderStatusReturned:
		return true
	}
	return false
}
