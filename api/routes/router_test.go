package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/craftroot/storefront-backend/api/controllers"
	ordersvc "github.com/craftroot/storefront-backend/internal/orders"
	paymentsvc "github.com/craftroot/storefront-backend/internal/payments"
	refundsvc "github.com/craftroot/storefront-backend/internal/refunds"
	pkgauth "github.com/craftroot/storefront-backend/pkg/auth"
	"github.com/craftroot/storefront-backend/pkg/config"
	"github.com/craftroot/storefront-backend/pkg/db/models"
	"github.com/craftroot/storefront-backend/pkg/enums"
	"github.com/craftroot/storefront-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrdersService struct{}

func (stubOrdersService) Create(ctx context.Context, input ordersvc.CreateOrderInput) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) Cancel(ctx context.Context, input ordersvc.CancelOrderInput) error {
	return nil
}

func (stubOrdersService) Confirm(ctx context.Context, orderID uuid.UUID, customerRef string) error {
	return nil
}

func (stubOrdersService) MarkShipped(ctx context.Context, input ordersvc.FulfillmentInput) error {
	return nil
}

func (stubOrdersService) MarkDelivered(ctx context.Context, input ordersvc.FulfillmentInput) error {
	return nil
}

func (stubOrdersService) Get(ctx context.Context, orderID uuid.UUID, customerRef string) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) ListCustomerOrders(ctx context.Context, customerRef string, params pagination.Params) (*ordersvc.OrderList, error) {
	return &ordersvc.OrderList{}, nil
}

type stubPaymentsService struct{}

func (stubPaymentsService) UploadReceipt(ctx context.Context, input paymentsvc.UploadReceiptInput) error {
	return nil
}

func (stubPaymentsService) Decide(ctx context.Context, input paymentsvc.DecideInput) error {
	return nil
}

func (stubPaymentsService) ListPendingVerification(ctx context.Context, params pagination.Params) (*ordersvc.OrderList, error) {
	return &ordersvc.OrderList{}, nil
}

type stubRefundsService struct{}

func (stubRefundsService) Request(ctx context.Context, input refundsvc.RequestInput) error {
	return nil
}

func (stubRefundsService) Decide(ctx context.Context, input refundsvc.DecideInput) error {
	return nil
}

func (stubRefundsService) MarkProcessed(ctx context.Context, input refundsvc.MarkProcessedInput) error {
	return nil
}

func (stubRefundsService) ListRequested(ctx context.Context, params pagination.Params) (*ordersvc.OrderList, error) {
	return &ordersvc.OrderList{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "storefront-test",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	return NewRouter(Deps{
		Config:    cfg,
		Pingables: []controllers.Pingable{stubPinger{}},
		Orders:    stubOrdersService{},
		Payments:  stubPaymentsService{},
		Refunds:   stubRefundsService{},
	})
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		CustomerRef: "cust-1",
		Role:        role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthEndpointsArePublic(t *testing.T) {
	router := newTestRouter(testConfig())

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestOrdersRequireJWT(t *testing.T) {
	router := newTestRouter(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestOrdersSucceedWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestStaffGroupRequiresStaffRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	customer := httptest.NewRequest(http.MethodGet, "/api/v1/staff/orders/pending-verification", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	staff := httptest.NewRequest(http.MethodGet, "/api/v1/staff/orders/pending-verification", nil)
	staff.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleStaff))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, staff)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for staff got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRefundDecisionRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	orderID := uuid.NewString()

	staff := httptest.NewRequest(http.MethodPost, "/api/v1/staff/orders/"+orderID+"/refund-decision", nil)
	staff.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.ActorRoleStaff))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, staff)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff got %d", resp.Code)
	}
}
