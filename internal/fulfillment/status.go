// Package fulfillment owns the sub-order lifecycle: cancellation by the
// seller, courier-driven status changes, settlement on final outcomes and
// the append-only status history.
package fulfillment

import (
	"regexp"
	"strings"

	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
)

// Kind is the lifecycle stage a status code belongs to.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindAwaitingPackaging
	KindRecordCreated
	KindInTransit
	KindDelivered
	KindReturned
	KindSellerCancelled
)

func (k Kind) String() string {
	switch k {
	case KindAwaitingPackaging:
		return "awaiting_packaging"
	case KindRecordCreated:
		return "record_created"
	case KindInTransit:
		return "in_transit"
	case KindDelivered:
		return "delivered"
	case KindReturned:
		return "returned"
	case KindSellerCancelled:
		return "seller_cancelled"
	default:
		return "unrecognized"
	}
}

// Status is a classified status code. Code is the raw value it was parsed
// from: a platform status or a courier update code.
type Status struct {
	Kind Kind
	Code string
}

func (s Status) IsTerminal() bool {
	switch s.Kind {
	case KindDelivered, KindReturned, KindSellerCancelled:
		return true
	}
	return false
}

// Stored is the value persisted in sub_orders.status. Courier codes for
// platform-level stages collapse to the platform status; intermediate codes
// are stored verbatim.
func (s Status) Stored() enums.SubOrderStatus {
	switch s.Kind {
	case KindAwaitingPackaging:
		return enums.SubOrderStatusAwaitingPackaging
	case KindRecordCreated:
		return enums.SubOrderStatusRecordCreated
	case KindDelivered:
		return enums.SubOrderStatusDelivered
	case KindReturned:
		return enums.SubOrderStatusReturned
	case KindSellerCancelled:
		return enums.SubOrderStatusSellerCancelled
	default:
		return enums.SubOrderStatus(s.Code)
	}
}

// CourierCode returns the courier code behind s, or "" for platform values.
func (s Status) CourierCode() string {
	if enums.SubOrderStatus(s.Code).IsDomain() {
		return ""
	}
	return s.Code
}

func (s Status) String() string {
	if s.Code == "" || s.Code == s.Kind.String() {
		return s.Kind.String()
	}
	return s.Kind.String() + "(" + s.Code + ")"
}

var intermediateCode = regexp.MustCompile(`^[A-Z]{2}\d{3}$`)

// Classifier maps raw codes to statuses using the configured courier code
// tables.
type Classifier struct {
	recordCreated map[string]struct{}
	delivered     map[string]struct{}
	returned      map[string]struct{}
}

func NewClassifier(cfg config.CourierConfig) *Classifier {
	return &Classifier{
		recordCreated: codeSet(cfg.RecordCreatedCodes),
		delivered:     codeSet(cfg.DeliveredCodes),
		returned:      codeSet(cfg.ReturnedCodes),
	}
}

// DefaultClassifier uses the courier's documented code tables.
func DefaultClassifier() *Classifier {
	return NewClassifier(config.CourierConfig{
		RecordCreatedCodes: []string{"SH014"},
		DeliveredCodes:     []string{"SH005", "SH006", "SH007"},
		ReturnedCodes:      []string{"SH069", "SH070"},
	})
}

func codeSet(codes []string) map[string]struct{} {
	out := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out[c] = struct{}{}
		}
	}
	return out
}

// Parse classifies code. Platform statuses are matched first, then the
// courier tables, then the generic intermediate code shape.
func (c *Classifier) Parse(code string) Status {
	raw := strings.TrimSpace(code)
	switch enums.SubOrderStatus(raw) {
	case enums.SubOrderStatusAwaitingPackaging:
		return Status{Kind: KindAwaitingPackaging, Code: raw}
	case enums.SubOrderStatusRecordCreated:
		return Status{Kind: KindRecordCreated, Code: raw}
	case enums.SubOrderStatusDelivered:
		return Status{Kind: KindDelivered, Code: raw}
	case enums.SubOrderStatusReturned:
		return Status{Kind: KindReturned, Code: raw}
	case enums.SubOrderStatusSellerCancelled:
		return Status{Kind: KindSellerCancelled, Code: raw}
	}

	upper := strings.ToUpper(raw)
	if _, ok := c.recordCreated[upper]; ok {
		return Status{Kind: KindRecordCreated, Code: upper}
	}
	if _, ok := c.delivered[upper]; ok {
		return Status{Kind: KindDelivered, Code: upper}
	}
	if _, ok := c.returned[upper]; ok {
		return Status{Kind: KindReturned, Code: upper}
	}
	if intermediateCode.MatchString(upper) {
		return Status{Kind: KindInTransit, Code: upper}
	}
	return Status{Kind: KindUnrecognized, Code: raw}
}

// CanTransition reports whether a sub-order may move from one status to
// another. Same-status moves are not transitions; callers treat them as
// no-ops before asking. In-transit codes are only compared with the current
// one here; the machine also checks them against the recorded history.
func CanTransition(from, to Status) bool {
	if to.Kind == KindUnrecognized || from.Kind == KindUnrecognized {
		return false
	}
	switch from.Kind {
	case KindAwaitingPackaging:
		switch to.Kind {
		case KindRecordCreated, KindInTransit, KindDelivered, KindReturned, KindSellerCancelled:
			return true
		}
	case KindRecordCreated:
		switch to.Kind {
		case KindInTransit, KindDelivered, KindReturned:
			return true
		}
	case KindInTransit:
		switch to.Kind {
		case KindInTransit:
			return to.Code != from.Code
		case KindDelivered, KindReturned:
			return true
		}
	}
	return false
}

func defaultDescription(s Status) string {
	switch s.Kind {
	case KindAwaitingPackaging:
		return "Awaiting packaging"
	case KindRecordCreated:
		return "Shipment record created"
	case KindInTransit:
		return "In transit"
	case KindDelivered:
		return "Delivered"
	case KindReturned:
		return "Returned to supplier"
	case KindSellerCancelled:
		return "Cancelled by seller"
	}
	return s.Code
}
