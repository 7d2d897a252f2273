package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/craftroot/storefront-backend/internal/catalog"
	"github.com/craftroot/storefront-backend/internal/coupons"
	"github.com/craftroot/storefront-backend/internal/orders"
	"github.com/craftroot/storefront-backend/pkg/config"
	"github.com/craftroot/storefront-backend/pkg/db/models"
	"github.com/craftroot/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftroot/storefront-backend/pkg/errors"
	"github.com/craftroot/storefront-backend/pkg/outbox"
	"github.com/craftroot/storefront-backend/pkg/types"
)

type testEnv struct {
	db       *gorm.DB
	orders   orders.Service
	payments Service
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Product{}, &models.InventoryItem{}, &models.InventoryReservation{},
		&models.Coupon{}, &models.Order{}, &models.OrderItem{},
		&models.OrderTransition{}, &models.OutboxEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	catalogSvc, err := catalog.NewService(db)
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	couponSvc, err := coupons.NewService(coupons.NewRepository(db))
	if err != nil {
		t.Fatalf("coupon service: %v", err)
	}
	outboxSvc := outbox.NewService(outbox.NewRepository(db), nil)
	repo := orders.NewRepository(db)
	runner := gormTxRunner{db: db}
	ledger := orders.NewInventoryLedger()

	orderSvc, err := orders.NewService(repo, runner, catalogSvc, couponSvc, ledger, outboxSvc, config.PricingConfig{TaxPercent: 10, ShippingFlatCents: 500})
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	paymentSvc, err := NewService(repo, runner, outboxSvc, ledger)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	return &testEnv{db: db, orders: orderSvc, payments: paymentSvc}
}

func (e *testEnv) placeOrder(t *testing.T, customerRef string, qty int) *models.Order {
	t.Helper()
	product := models.Product{ID: uuid.New(), Name: "Widget", PriceCents: 2000, IsActive: true}
	if err := e.db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	if err := e.db.Create(&models.InventoryItem{ProductID: product.ID, AvailableQty: qty + 5}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	order, err := e.orders.Create(context.Background(), orders.CreateOrderInput{
		CustomerRef: customerRef,
		Items:       []orders.CreateOrderItemInput{{ProductID: product.ID, Qty: qty}},
		PaymentMethod: enums.PaymentMethodUPI,
		ShippingAddress: types.Address{
			Name: "Asha Rao", Phone: "9999999999", Street: "12 Lake View Road",
			City: "Bengaluru", State: "KA", Pincode: "560001",
		},
		ActorRole: enums.ActorRoleCustomer,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return order
}

func (e *testEnv) reload(t *testing.T, orderID uuid.UUID) *models.Order {
	t.Helper()
	var order models.Order
	if err := e.db.Where("id = ?", orderID).First(&order).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return &order
}

func assertCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", want)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected coded error, got %v", err)
	}
	if typed.Code() != want {
		t.Fatalf("expected code %s, got %s", want, typed.Code())
	}
}

func TestUploadReceipt(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, "cust-1", 1)

	err := env.payments.UploadReceipt(ctx, UploadReceiptInput{
		OrderID:     order.ID,
		CustomerRef: "cust-1",
		ReceiptRef:  "txn-1001",
		ActorRole:   enums.ActorRoleCustomer,
	})
	if err != nil {
		t.Fatalf("upload receipt: %v", err)
	}

	reloaded := env.reload(t, order.ID)
	if reloaded.PaymentStatus != enums.PaymentStatusPendingVerification {
		t.Fatalf("expected pending_verification, got %s", reloaded.PaymentStatus)
	}
	if reloaded.PaymentReceiptRef == nil || *reloaded.PaymentReceiptRef != "txn-1001" {
		t.Fatalf("expected receipt ref to be stored")
	}

	// Re-upload replaces the reference without another event.
	err = env.payments.UploadReceipt(ctx, UploadReceiptInput{
		OrderID:     order.ID,
		CustomerRef: "cust-1",
		ReceiptRef:  "txn-1002",
		ActorRole:   enums.ActorRoleCustomer,
	})
	if err != nil {
		t.Fatalf("re-upload receipt: %v", err)
	}
	reloaded = env.reload(t, order.ID)
	if reloaded.PaymentReceiptRef == nil || *reloaded.PaymentReceiptRef != "txn-1002" {
		t.Fatalf("expected replaced receipt ref")
	}

	var events []models.OutboxEvent
	if err := env.db.Where("event_type = ?", enums.EventPaymentPendingVerification).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one pending_verification event, got %d", len(events))
	}
}

func TestUploadReceiptWrongCustomer(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	order := env.placeOrder(t, "cust-1", 1)

	err := env.payments.UploadReceipt(context.Background(), UploadReceiptInput{
		OrderID:     order.ID,
		CustomerRef: "cust-2",
		ReceiptRef:  "txn-1001",
		ActorRole:   enums.ActorRoleCustomer,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestDecideApprove(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, "cust-1", 1)

	err := env.payments.UploadReceipt(ctx, UploadReceiptInput{
		OrderID: order.ID, CustomerRef: "cust-1", ReceiptRef: "txn-1001",
		ActorRole: enums.ActorRoleCustomer,
	})
	if err != nil {
		t.Fatalf("upload receipt: %v", err)
	}

	decide := DecideInput{
		OrderID:   order.ID,
		Approve:   true,
		ActorRef:  "staff-1",
		ActorRole: enums.ActorRoleStaff,
	}
	if err := env.payments.Decide(ctx, decide); err != nil {
		t.Fatalf("approve payment: %v", err)
	}

	reloaded := env.reload(t, order.ID)
	if reloaded.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", reloaded.PaymentStatus)
	}
	if reloaded.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected processing after approval, got %s", reloaded.Status)
	}

	// Deciding again with the same verdict is a no-op.
	if err := env.payments.Decide(ctx, decide); err != nil {
		t.Fatalf("repeat approve: %v", err)
	}
	var events []models.OutboxEvent
	if err := env.db.Where("event_type = ?", enums.EventPaymentDecided).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one payment_decided event, got %d", len(events))
	}
}

func TestDecideRejectAfterApproval(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, "cust-1", 1)

	err := env.payments.UploadReceipt(ctx, UploadReceiptInput{
		OrderID: order.ID, CustomerRef: "cust-1", ReceiptRef: "txn-1001",
		ActorRole: enums.ActorRoleCustomer,
	})
	if err != nil {
		t.Fatalf("upload receipt: %v", err)
	}
	err = env.payments.Decide(ctx, DecideInput{
		OrderID:   order.ID,
		Approve:   true,
		ActorRef:  "staff-1",
		ActorRole: enums.ActorRoleStaff,
	})
	if err != nil {
		t.Fatalf("approve payment: %v", err)
	}

	// A later opposing verdict must fail without touching the order.
	comment := "second thoughts"
	err = env.payments.Decide(ctx, DecideInput{
		OrderID:      order.ID,
		Approve:      false,
		StaffComment: &comment,
		ActorRef:     "staff-2",
		ActorRole:    enums.ActorRoleStaff,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)

	reloaded := env.reload(t, order.ID)
	if reloaded.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected payment to stay paid, got %s", reloaded.PaymentStatus)
	}
	if reloaded.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected order to stay processing, got %s", reloaded.Status)
	}
	if reloaded.StaffComment != nil {
		t.Fatalf("expected rejected verdict to leave no comment, got %q", *reloaded.StaffComment)
	}

	var events []models.OutboxEvent
	if err := env.db.Where("event_type = ?", enums.EventPaymentDecided).Find(&events).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one payment_decided event, got %d", len(events))
	}
}

func TestDecideReject(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, "cust-1", 2)

	err := env.payments.UploadReceipt(ctx, UploadReceiptInput{
		OrderID: order.ID, CustomerRef: "cust-1", ReceiptRef: "txn-1001",
		ActorRole: enums.ActorRoleCustomer,
	})
	if err != nil {
		t.Fatalf("upload receipt: %v", err)
	}

	comment := "amount mismatch"
	err = env.payments.Decide(ctx, DecideInput{
		OrderID:      order.ID,
		Approve:      false,
		StaffComment: &comment,
		ActorRef:     "staff-1",
		ActorRole:    enums.ActorRoleStaff,
	})
	if err != nil {
		t.Fatalf("reject payment: %v", err)
	}

	reloaded := env.reload(t, order.ID)
	if reloaded.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("expected failed payment, got %s", reloaded.PaymentStatus)
	}
	if reloaded.Status != enums.OrderStatusCancelled || reloaded.CancelledAt == nil {
		t.Fatalf("expected cancelled order, got %s", reloaded.Status)
	}
	if reloaded.StaffComment == nil || *reloaded.StaffComment != "amount mismatch" {
		t.Fatalf("expected staff comment to be stored")
	}

	// Rejection returns the reserved stock.
	var item models.InventoryItem
	if err := env.db.First(&item).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if item.ReservedQty != 0 {
		t.Fatalf("expected reservation released, got reserved %d", item.ReservedQty)
	}
}

func TestDecideRequiresReceipt(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	order := env.placeOrder(t, "cust-1", 1)

	err := env.payments.Decide(context.Background(), DecideInput{
		OrderID:   order.ID,
		Approve:   true,
		ActorRef:  "staff-1",
		ActorRole: enums.ActorRoleStaff,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestDecideRequiresStaff(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	order := env.placeOrder(t, "cust-1", 1)

	err := env.payments.Decide(context.Background(), DecideInput{
		OrderID:   order.ID,
		Approve:   true,
		ActorRef:  "cust-1",
		ActorRole: enums.ActorRoleCustomer,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}
