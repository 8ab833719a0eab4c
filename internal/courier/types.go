package courier

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPackageWeightKg is used for items without a known weight.
const DefaultPackageWeightKg = 0.5

type Address struct {
	Line1       string
	Line2       string
	City        string
	State       string
	CountryCode string
}

type Contact struct {
	Name    string
	Company string
	Phone   string
	Email   string
}

// Party is a shipper or consignee block.
type Party struct {
	Reference string
	Address   Address
	Contact   Contact
}

type Item struct {
	Quantity  int
	Reference string
	Comments  string
	WeightKg  float64
}

type Shipment struct {
	Reference1     string
	Reference2     string
	Shipper        Party
	Consignee      Party
	Description    string
	Comments       string
	CashOnDelivery decimal.Decimal
	Items          []Item
}

// weight is the item's total weight; unknown weights count as the default
// package weight per unit.
func (it Item) weight() float64 {
	if it.WeightKg > 0 {
		return it.WeightKg
	}
	return DefaultPackageWeightKg * float64(max(it.Quantity, 1))
}

// WeightKg sums item weights, falling back to the default package weight.
func (s Shipment) WeightKg() float64 {
	var total float64
	for _, it := range s.Items {
		total += it.weight()
	}
	if total <= 0 {
		return DefaultPackageWeightKg
	}
	return total
}

func (s Shipment) Pieces() int {
	n := 0
	for _, it := range s.Items {
		n += max(it.Quantity, 1)
	}
	return max(n, 1)
}

// PickupRequest asks the courier to collect Shipments at Address on
// PickupDate.
type PickupRequest struct {
	Reference  string
	Address    Address
	Contact    Contact
	PickupDate time.Time
	Shipments  []Shipment
}

type Notification struct {
	Code    string
	Message string
}

func joinNotifications(ns []Notification) string {
	parts := make([]string, 0, len(ns))
	for _, n := range ns {
		parts = append(parts, n.Code+": "+n.Message)
	}
	return strings.Join(parts, "; ")
}

// PickupOutcome is either PickupAccepted or PickupRejected.
type PickupOutcome interface {
	isPickupOutcome()
}

// ProcessedShipment is one shipment the courier registered. Reference echoes
// the Reference1 we sent.
type ProcessedShipment struct {
	ID            string
	Reference     string
	HasErrors     bool
	Notifications []Notification
}

type PickupAccepted struct {
	ID        string
	GUID      string
	Shipments []ProcessedShipment
}

type PickupRejected struct {
	Notifications []Notification
}

func (PickupAccepted) isPickupOutcome() {}
func (PickupRejected) isPickupOutcome() {}

// Reason renders the rejection notifications for logs and error details.
func (r PickupRejected) Reason() string {
	if len(r.Notifications) == 0 {
		return "rejected without notifications"
	}
	return joinNotifications(r.Notifications)
}

// TrackingUpdate is one status event of a shipment.
type TrackingUpdate struct {
	ShipmentID  string
	Code        string
	Description string
	OccurredAt  time.Time
	Location    string
}
