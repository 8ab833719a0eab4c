package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	ordercontrollers "github.com/angelmondragon/dropship-backend/api/controllers/orders"
	"github.com/angelmondragon/dropship-backend/internal/fulfillment"
	"github.com/angelmondragon/dropship-backend/internal/ledger"
	"github.com/angelmondragon/dropship-backend/internal/notifications"
	"github.com/angelmondragon/dropship-backend/internal/orders"
	"github.com/angelmondragon/dropship-backend/internal/pickups"
	courierwebhook "github.com/angelmondragon/dropship-backend/internal/webhooks/courier"
	pkgAuth "github.com/angelmondragon/dropship-backend/pkg/auth"
	"github.com/angelmondragon/dropship-backend/pkg/config"
	"github.com/angelmondragon/dropship-backend/pkg/enums"
	"github.com/angelmondragon/dropship-backend/pkg/logger"
	"github.com/angelmondragon/dropship-backend/pkg/pagination"
	"github.com/angelmondragon/dropship-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubLedgerService struct {
	ledger.Service
}

func (stubLedgerService) Balance(ctx context.Context, userID uuid.UUID) (*ledger.BalanceDTO, error) {
	return &ledger.BalanceDTO{UserID: userID, Balance: decimal.RequireFromString("12.50")}, nil
}

func (stubLedgerService) ListWithdraws(ctx context.Context, filter ledger.WithdrawFilter, params pagination.Params) (*types.Page[ledger.WithdrawDTO], error) {
	return &types.Page[ledger.WithdrawDTO]{Items: []ledger.WithdrawDTO{}}, nil
}

type stubOrdersService struct {
	orders.Service
}

func (stubOrdersService) ListSellerOrders(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*types.Page[orders.OrderSummaryDTO], error) {
	return &types.Page[orders.OrderSummaryDTO]{Items: []orders.OrderSummaryDTO{}}, nil
}

type stubNotificationsService struct {
	notifications.Service
}

type stubFulfillmentService struct {
	ordercontrollers.FulfillmentService
}

type stubPickupService struct{}

func (stubPickupService) RequestPickup(ctx context.Context, input pickups.RequestPickupInput) (*pickups.BatchResult, error) {
	return &pickups.BatchResult{}, nil
}

func (stubPickupService) GetPickup(ctx context.Context, id, actorID uuid.UUID, role enums.UserRole) (*pickups.PickupDTO, []uuid.UUID, error) {
	return nil, nil, nil
}

type stubWebhookService struct{}

func (stubWebhookService) VerifySignature(payload []byte, header string) bool {
	return header == "valid"
}

func (stubWebhookService) HandleEvent(ctx context.Context, event courierwebhook.Event) (*fulfillment.UpdateResult, error) {
	return &fulfillment.UpdateResult{Ignored: true, Reason: "unknown shipment"}, nil
}

type stubWebhookGuard struct{}

func (stubWebhookGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	return false, nil
}

func (stubWebhookGuard) Delete(ctx context.Context, eventID string) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Env:                "test",
			CORSAllowedOrigins: []string{"http://localhost:3000"},
		},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(Dependencies{
		Config:              cfg,
		Logger:              logg,
		DB:                  stubPinger{},
		Gatherer:            prometheus.NewRegistry(),
		Orders:              stubOrdersService{},
		Fulfillment:         stubFulfillmentService{},
		Pickups:             stubPickupService{},
		Ledger:              stubLedgerService{},
		Notifications:       stubNotificationsService{},
		CourierWebhook:      stubWebhookService{},
		CourierWebhookGuard: stubWebhookGuard{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(testConfig())

	if resp := serve(router, httptest.NewRequest(http.MethodGet, "/health/live", nil)); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for live got %d", resp.Code)
	}
	if resp := serve(router, httptest.NewRequest(http.MethodGet, "/health/ready", nil)); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for ready got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMetricsRoute(t *testing.T) {
	router := newTestRouter(testConfig())
	resp := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for metrics got %d", resp.Code)
	}
}

func TestPrivateRoutesRejectMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig())
	resp := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/balance", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateRoutesSucceedWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/balance", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSupplier))
	resp := serve(router, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for balance got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "12.5") {
		t.Fatalf("expected balance in body got %s", resp.Body.String())
	}
}

func TestSellerRoutesRequireSellerRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	supplier := httptest.NewRequest(http.MethodGet, "/api/v1/seller/orders", nil)
	supplier.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSupplier))
	if resp := serve(router, supplier); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for supplier got %d", resp.Code)
	}

	seller := httptest.NewRequest(http.MethodGet, "/api/v1/seller/orders", nil)
	seller.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSeller))
	if resp := serve(router, seller); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for seller got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	seller := httptest.NewRequest(http.MethodGet, "/api/v1/admin/withdraws", nil)
	seller.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleSeller))
	if resp := serve(router, seller); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/v1/admin/withdraws", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	if resp := serve(router, admin); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCourierWebhookIsPublicButSigned(t *testing.T) {
	router := newTestRouter(testConfig())
	body := `{"id":"evt-1","shipmentId":"SHP-1","updateCode":"7"}`

	unsigned := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", strings.NewReader(body))
	if resp := serve(router, unsigned); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without signature got %d", resp.Code)
	}

	signed := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/courier", strings.NewReader(body))
	signed.Header.Set(courierwebhook.SignatureHeader, "valid")
	if resp := serve(router, signed); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed webhook got %d: %s", resp.Code, resp.Body.String())
	}
}
