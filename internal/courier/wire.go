package courier

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Wire types mirror the courier's JSON contract field for field.

type wireClientInfo struct {
	UserName           string `json:"UserName"`
	Password           string `json:"Password"`
	Version            string `json:"Version"`
	AccountNumber      string `json:"AccountNumber"`
	AccountPin         string `json:"AccountPin"`
	AccountEntity      string `json:"AccountEntity"`
	AccountCountryCode string `json:"AccountCountryCode"`
	Source             int    `json:"Source"`
}

type wireAddress struct {
	Line1               string `json:"Line1"`
	Line2               string `json:"Line2"`
	City                string `json:"City"`
	StateOrProvinceCode string `json:"StateOrProvinceCode"`
	CountryCode         string `json:"CountryCode"`
}

type wireContact struct {
	PersonName   string `json:"PersonName"`
	CompanyName  string `json:"CompanyName"`
	PhoneNumber1 string `json:"PhoneNumber1"`
	CellPhone    string `json:"CellPhone"`
	EmailAddress string `json:"EmailAddress"`
}

type wireParty struct {
	Reference1    string      `json:"Reference1"`
	AccountNumber string      `json:"AccountNumber,omitempty"`
	PartyAddress  wireAddress `json:"PartyAddress"`
	Contact       wireContact `json:"Contact"`
}

type wireWeight struct {
	Unit  string  `json:"Unit"`
	Value float64 `json:"Value"`
}

type wireMoney struct {
	CurrencyCode string  `json:"CurrencyCode"`
	Value        float64 `json:"Value"`
}

type wireItem struct {
	PackageType string     `json:"PackageType"`
	Quantity    int        `json:"Quantity"`
	Weight      wireWeight `json:"Weight"`
	Comments    string     `json:"Comments"`
	Reference   string     `json:"Reference"`
}

type wireShipmentDetails struct {
	ActualWeight         wireWeight `json:"ActualWeight"`
	NumberOfPieces       int        `json:"NumberOfPieces"`
	ProductGroup         string     `json:"ProductGroup"`
	ProductType          string     `json:"ProductType"`
	PaymentType          string     `json:"PaymentType"`
	Services             string     `json:"Services"`
	DescriptionOfGoods   string     `json:"DescriptionOfGoods"`
	GoodsOriginCountry   string     `json:"GoodsOriginCountry"`
	CashOnDeliveryAmount *wireMoney `json:"CashOnDeliveryAmount,omitempty"`
	Items                []wireItem `json:"Items"`
}

type wireShipment struct {
	Reference1   string              `json:"Reference1"`
	Reference2   string              `json:"Reference2"`
	Shipper      wireParty           `json:"Shipper"`
	Consignee    wireParty           `json:"Consignee"`
	ShippingDate string              `json:"ShippingDateTime"`
	Comments     string              `json:"Comments"`
	Details      wireShipmentDetails `json:"Details"`
}

type wirePickup struct {
	PickupAddress  wireAddress    `json:"PickupAddress"`
	PickupContact  wireContact    `json:"PickupContact"`
	PickupLocation string         `json:"PickupLocation"`
	PickupDate     string         `json:"PickupDate"`
	ReadyTime      string         `json:"ReadyTime"`
	LastPickupTime string         `json:"LastPickupTime"`
	ClosingTime    string         `json:"ClosingTime"`
	Reference1     string         `json:"Reference1"`
	Status         string         `json:"Status"`
	Shipments      []wireShipment `json:"Shipments"`
}

type wireCreatePickupRequest struct {
	ClientInfo wireClientInfo `json:"ClientInfo"`
	Pickup     wirePickup     `json:"Pickup"`
}

type wireNotification struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

type wireProcessedShipment struct {
	ID            string             `json:"ID"`
	Reference     string             `json:"Reference"`
	Reference1    string             `json:"Reference1"`
	HasErrors     bool               `json:"HasErrors"`
	Notifications []wireNotification `json:"Notifications"`
}

// reference is the echoed shipment reference. Some accounts answer with
// Reference1 only.
func (s wireProcessedShipment) reference() string {
	if s.Reference != "" {
		return s.Reference
	}
	return s.Reference1
}

type wireProcessedPickup struct {
	ID                 string                  `json:"ID"`
	GUID               string                  `json:"GUID"`
	ProcessedShipments []wireProcessedShipment `json:"ProcessedShipments"`
}

// wireCreatePickupResponse keeps HasErrors as a pointer so a body without the
// field is told apart from an explicit false.
type wireCreatePickupResponse struct {
	HasErrors       *bool                `json:"HasErrors"`
	Notifications   []wireNotification   `json:"Notifications"`
	ProcessedPickup *wireProcessedPickup `json:"ProcessedPickup"`
}

type wireTrackRequest struct {
	ClientInfo                wireClientInfo `json:"ClientInfo"`
	Shipments                 []string       `json:"Shipments"`
	GetLastTrackingUpdateOnly bool           `json:"GetLastTrackingUpdateOnly"`
}

type wireTrackingResult struct {
	WaybillNumber     string `json:"WaybillNumber"`
	UpdateCode        string `json:"UpdateCode"`
	UpdateDescription string `json:"UpdateDescription"`
	UpdateDateTime    string `json:"UpdateDateTime"`
	UpdateLocation    string `json:"UpdateLocation"`
}

type wireTrackingEntry struct {
	Key   string               `json:"Key"`
	Value []wireTrackingResult `json:"Value"`
}

type wireTrackResponse struct {
	HasErrors       bool                `json:"HasErrors"`
	Notifications   []wireNotification  `json:"Notifications"`
	TrackingResults []wireTrackingEntry `json:"TrackingResults"`
}

// The courier encodes instants as "/Date(<unix millis>[+-hhmm])/".
var wireDatePattern = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)

func formatWireDate(t time.Time) string {
	return fmt.Sprintf("/Date(%d)/", t.UnixMilli())
}

func parseWireDate(value string) (time.Time, error) {
	m := wireDatePattern.FindStringSubmatch(value)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid courier date %q", value)
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid courier date %q: %w", value, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func toNotifications(in []wireNotification) []Notification {
	if len(in) == 0 {
		return nil
	}
	out := make([]Notification, 0, len(in))
	for _, n := range in {
		out = append(out, Notification{Code: n.Code, Message: n.Message})
	}
	return out
}

// decodePickupResponse maps a CreatePickup body onto the PickupOutcome
// union. Bodies that are neither an accepted nor a rejected pickup are an
// error.
func decodePickupResponse(body []byte) (PickupOutcome, error) {
	var resp wireCreatePickupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode pickup response: %w", err)
	}
	if resp.HasErrors == nil {
		return nil, fmt.Errorf("unrecognized pickup response: HasErrors missing")
	}
	if *resp.HasErrors {
		return PickupRejected{Notifications: toNotifications(resp.Notifications)}, nil
	}
	if resp.ProcessedPickup == nil || (resp.ProcessedPickup.ID == "" && resp.ProcessedPickup.GUID == "") {
		return nil, fmt.Errorf("unrecognized pickup response: processed pickup missing")
	}
	accepted := PickupAccepted{
		ID:        resp.ProcessedPickup.ID,
		GUID:      resp.ProcessedPickup.GUID,
		Shipments: make([]ProcessedShipment, 0, len(resp.ProcessedPickup.ProcessedShipments)),
	}
	for _, s := range resp.ProcessedPickup.ProcessedShipments {
		accepted.Shipments = append(accepted.Shipments, ProcessedShipment{
			ID:            s.ID,
			Reference:     s.reference(),
			HasErrors:     s.HasErrors,
			Notifications: toNotifications(s.Notifications),
		})
	}
	return accepted, nil
}
