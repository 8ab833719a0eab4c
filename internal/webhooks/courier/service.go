package courierwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Courier-Signature"

// Event is the courier's status push.
type Event struct {
	ID                string    `json:"id"`
	ShipmentID        string    `json:"shipmentId"`
	Reference         string    `json:"reference"`
	UpdateCode        string    `json:"updateCode"`
	UpdateDescription string    `json:"updateDescription"`
	OccurredAt        time.Time `json:"occurredAt"`
}

type updateApplier interface {
	ApplyCourierUpdate(ctx context.Context, update fulfillment.CourierUpdate) (*fulfillment.UpdateResult, error)
}

type Service struct {
	machine updateApplier
	secret  string
	logg    *logger.Logger
}

func NewService(machine updateApplier, secret string, logg *logger.Logger) (*Service, error) {
	if machine == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "fulfillment machine required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "courier webhook secret required")
	}
	return &Service{machine: machine, secret: secret, logg: logg}, nil
}

// VerifySignature checks header against the HMAC of payload.
func (s *Service) VerifySignature(payload []byte, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(header)))
}

// HandleEvent feeds one push into the fulfillment machine. Pushes for
// unknown sub-orders, unknown codes or finished sub-orders come back as
// ignored results rather than errors so the courier stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event Event) (*fulfillment.UpdateResult, error) {
	if strings.TrimSpace(event.UpdateCode) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "updateCode is required")
	}
	if event.ShipmentID == "" && event.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipmentId or reference is required")
	}
	ctx = s.logg.WithField(ctx, "courier_event_id", event.ID)
	res, err := s.machine.ApplyCourierUpdate(ctx, fulfillment.CourierUpdate{
		DeliveryID:  strings.TrimSpace(event.ShipmentID),
		Reference:   strings.TrimSpace(event.Reference),
		Code:        strings.TrimSpace(event.UpdateCode),
		Description: event.UpdateDescription,
	})
	if err != nil {
		return nil, err
	}
	if res.Ignored {
		s.logg.Info(s.logg.WithField(ctx, "reason", res.Reason), "courier webhook ignored")
	}
	return res, nil
}
