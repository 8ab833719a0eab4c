// Package courier is the HTTP gateway to the third-party courier: pickup
// creation and shipment tracking.
package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/dropship-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/metrics"
)

const (
	defaultTimeout        = 20 * time.Second
	defaultCurrency       = "TND"
	clientInfoVersion     = "v1"
	clientInfoSource      = 24
	responseBodyReadLimit = 1 << 20
	errorBodyReadLimit    = 1024

	opCreatePickup   = "create_pickup"
	opTrackShipments = "track_shipments"
)

var errBaseURLRequired = errors.New("courier base url is required")

// Gateway is the courier surface the pickup batcher and tracking poll use.
type Gateway interface {
	CreatePickup(ctx context.Context, req PickupRequest) (PickupOutcome, error)
	TrackShipments(ctx context.Context, shipmentIDs []string) (map[string][]TrackingUpdate, error)
}

// Client talks to the courier JSON API.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	trackingBaseURL string
	info            wireClientInfo
	currency        string
	metrics         *metrics.CourierMetrics
	logg            *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the shipping service base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTrackingBaseURL overrides the tracking service base URL.
func WithTrackingBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.trackingBaseURL = trimmed
		}
	}
}

func WithMetrics(m *metrics.CourierMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) { c.logg = logg }
}

// NewClient builds a courier client from the courier config.
func NewClient(cfg config.CourierConfig, opts ...Option) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := &Client{
		httpClient:      &http.Client{Timeout: timeout},
		baseURL:         strings.TrimSpace(cfg.BaseURL),
		trackingBaseURL: strings.TrimSpace(cfg.TrackingBaseURL),
		currency:        cfg.Currency,
		info: wireClientInfo{
			UserName:           cfg.Username,
			Password:           cfg.Password,
			Version:            clientInfoVersion,
			AccountNumber:      cfg.AccountNumber,
			AccountPin:         cfg.AccountPin,
			AccountEntity:      cfg.AccountEntity,
			AccountCountryCode: cfg.AccountCountryCode,
			Source:             clientInfoSource,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.baseURL == "" {
		return nil, errBaseURLRequired
	}
	if client.currency == "" {
		client.currency = defaultCurrency
	}
	if client.trackingBaseURL == "" {
		client.trackingBaseURL = client.baseURL
	}
	return client, nil
}

// CreatePickup registers a pickup with its shipments. Transport failures,
// non-2xx statuses and unrecognized bodies are returned as Dependency
// errors; a courier-side refusal is a PickupRejected outcome.
func (c *Client) CreatePickup(ctx context.Context, req PickupRequest) (PickupOutcome, error) {
	if c == nil {
		return nil, courierError(errors.New("courier client not configured"), "courier unavailable")
	}
	if len(req.Shipments) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup requires at least one shipment")
	}

	started := time.Now()
	body, err := c.post(ctx, c.baseURL, "CreatePickup", wireCreatePickupRequest{
		ClientInfo: c.info,
		Pickup:     c.toWirePickup(req),
	})
	if err != nil {
		c.metrics.Observe(opCreatePickup, metrics.OutcomeError, time.Since(started))
		return nil, err
	}

	outcome, err := decodePickupResponse(body)
	if err != nil {
		c.metrics.Observe(opCreatePickup, metrics.OutcomeError, time.Since(started))
		return nil, courierError(err, "unrecognized courier response")
	}
	if rejected, ok := outcome.(PickupRejected); ok {
		c.metrics.Observe(opCreatePickup, metrics.OutcomeRejected, time.Since(started))
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"pickup_reference": req.Reference,
			"courier_reason":   rejected.Reason(),
		}), "courier rejected pickup")
		return outcome, nil
	}
	c.metrics.Observe(opCreatePickup, metrics.OutcomeOK, time.Since(started))
	return outcome, nil
}

// TrackShipments returns the tracking history per shipment id, oldest
// update first. Unknown ids are absent from the map.
func (c *Client) TrackShipments(ctx context.Context, shipmentIDs []string) (map[string][]TrackingUpdate, error) {
	if c == nil {
		return nil, courierError(errors.New("courier client not configured"), "courier unavailable")
	}
	if len(shipmentIDs) == 0 {
		return map[string][]TrackingUpdate{}, nil
	}

	started := time.Now()
	body, err := c.post(ctx, c.trackingBaseURL, "TrackShipments", wireTrackRequest{
		ClientInfo: c.info,
		Shipments:  shipmentIDs,
	})
	if err != nil {
		c.metrics.Observe(opTrackShipments, metrics.OutcomeError, time.Since(started))
		return nil, err
	}

	var resp wireTrackResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.metrics.Observe(opTrackShipments, metrics.OutcomeError, time.Since(started))
		return nil, courierError(err, "decode tracking response")
	}
	if resp.HasErrors {
		c.metrics.Observe(opTrackShipments, metrics.OutcomeRejected, time.Since(started))
		return nil, courierError(errors.New(joinNotifications(toNotifications(resp.Notifications))), "courier rejected tracking request")
	}

	out := make(map[string][]TrackingUpdate, len(resp.TrackingResults))
	for _, entry := range resp.TrackingResults {
		updates := make([]TrackingUpdate, 0, len(entry.Value))
		for _, r := range entry.Value {
			at, err := parseWireDate(r.UpdateDateTime)
			if err != nil {
				c.logg.Warn(c.logg.WithField(ctx, "shipment_id", entry.Key), "skipping tracking update with bad date")
				continue
			}
			updates = append(updates, TrackingUpdate{
				ShipmentID:  entry.Key,
				Code:        r.UpdateCode,
				Description: r.UpdateDescription,
				OccurredAt:  at,
				Location:    r.UpdateLocation,
			})
		}
		sort.SliceStable(updates, func(i, j int) bool { return updates[i].OccurredAt.Before(updates[j].OccurredAt) })
		out[entry.Key] = updates
	}
	c.metrics.Observe(opTrackShipments, metrics.OutcomeOK, time.Since(started))
	return out, nil
}

func (c *Client) post(ctx context.Context, base, method string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, courierError(err, "marshal courier request")
	}
	url := strings.TrimRight(base, "/") + "/" + method
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, courierError(err, "build courier request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, courierError(err, "execute courier request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, courierError(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), method+" request failed")
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, courierError(err, "read courier response")
	}
	return body, nil
}

func courierError(err error, message string) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message).WithReason(pkgerrors.ReasonCourier)
}

func (c *Client) toWirePickup(req PickupRequest) wirePickup {
	date := formatWireDate(req.PickupDate)
	closing := formatWireDate(req.PickupDate.Add(4 * time.Hour))
	p := wirePickup{
		PickupAddress:  toWireAddress(req.Address),
		PickupContact:  toWireContact(req.Contact),
		PickupLocation: req.Address.Line1,
		PickupDate:     date,
		ReadyTime:      date,
		LastPickupTime: closing,
		ClosingTime:    closing,
		Reference1:     req.Reference,
		Status:         "Ready",
		Shipments:      make([]wireShipment, 0, len(req.Shipments)),
	}
	for _, s := range req.Shipments {
		p.Shipments = append(p.Shipments, c.toWireShipment(s, date))
	}
	return p
}

func (c *Client) toWireShipment(s Shipment, date string) wireShipment {
	items := make([]wireItem, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, wireItem{
			PackageType: "Box",
			Quantity:    it.Quantity,
			Weight:      wireWeight{Unit: "KG", Value: it.weight()},
			Comments:    it.Comments,
			Reference:   it.Reference,
		})
	}
	details := wireShipmentDetails{
		ActualWeight:       wireWeight{Unit: "KG", Value: s.WeightKg()},
		NumberOfPieces:     s.Pieces(),
		ProductGroup:       "DOM",
		ProductType:        "CDS",
		PaymentType:        "P",
		DescriptionOfGoods: s.Description,
		GoodsOriginCountry: c.info.AccountCountryCode,
		Items:              items,
	}
	if s.CashOnDelivery.IsPositive() {
		details.Services = "CODS"
		details.CashOnDeliveryAmount = &wireMoney{CurrencyCode: c.currency, Value: s.CashOnDelivery.InexactFloat64()}
	}
	shipper := toWireParty(s.Shipper)
	shipper.AccountNumber = c.info.AccountNumber
	return wireShipment{
		Reference1:   s.Reference1,
		Reference2:   s.Reference2,
		Shipper:      shipper,
		Consignee:    toWireParty(s.Consignee),
		ShippingDate: date,
		Comments:     s.Comments,
		Details:      details,
	}
}

func toWireParty(p Party) wireParty {
	return wireParty{
		Reference1:   p.Reference,
		PartyAddress: toWireAddress(p.Address),
		Contact:      toWireContact(p.Contact),
	}
}

func toWireAddress(a Address) wireAddress {
	return wireAddress{
		Line1:               a.Line1,
		Line2:               a.Line2,
		City:                a.City,
		StateOrProvinceCode: a.State,
		CountryCode:         a.CountryCode,
	}
}

func toWireContact(c Contact) wireContact {
	return wireContact{
		PersonName:   c.Name,
		CompanyName:  c.Company,
		PhoneNumber1: c.Phone,
		CellPhone:    c.Phone,
		EmailAddress: c.Email,
	}
}
