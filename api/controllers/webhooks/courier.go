package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/dropship-backend/api/responses"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	courierwebhook "github.com/angelmondragon/dropship-backend/internal/webhooks/courier"
	pkgerrors "github.com/angelmondragon/dropship-backend/pkg/errors"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
)

const maxWebhookBody = 1 << 20

type CourierWebhookService interface {
	VerifySignature(payload []byte, header string) bool
	HandleEvent(ctx context.Context, event courierwebhook.Event) (*fulfillment.UpdateResult, error)
}

type CourierWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// CourierWebhook receives courier status pushes. Replays of an already
// processed event id are acknowledged without side effects.
func CourierWebhook(svc CourierWebhookService, guard CourierWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courier webhook unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		if !svc.VerifySignature(payload, r.Header.Get(courierwebhook.SignatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid courier signature"))
			return
		}

		var event courierwebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}
		eventID := strings.TrimSpace(event.ID)
		if eventID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id is required"))
			return
		}

		seen, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if seen {
			responses.WriteSuccess(w, map[string]any{"duplicate": true})
			return
		}

		res, err := svc.HandleEvent(ctx, event)
		if err != nil {
			_ = guard.Delete(ctx, eventID)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		body := map[string]any{"ignored": res.Ignored}
		if res.Ignored {
			body["reason"] = res.Reason
		}
		if res.Transition != nil {
			body["status"] = res.Transition.To.Stored()
			body["changed"] = res.Transition.Changed
		}
		responses.WriteSuccess(w, body)
	}
}
