package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/craftroot/storefront-backend/pkg/db/models"
	pkgerrors "github.com/craftroot/storefront-backend/pkg/errors"
)

func TestFindActiveByIDs(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	active := seedProduct(t, db, "Widget", 1299, true)
	inactive := seedProduct(t, db, "Retired widget", 999, false)
	missing := uuid.New()

	found, err := svc.FindActiveByIDs(ctx, []uuid.UUID{active.ID, inactive.ID, missing})
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 active product, got %d", len(found))
	}
	got, ok := found[active.ID]
	if !ok {
		t.Fatalf("expected active product in result")
	}
	if got.PriceCents != 1299 {
		t.Fatalf("expected price 1299, got %d", got.PriceCents)
	}

	empty, err := svc.FindActiveByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("find with no ids: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty result for no ids")
	}
}

func TestCreateProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, CreateProductInput{
		Name:       "  Gift box ",
		PriceCents: 2500,
		InitialQty: 10,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created.Name != "Gift box" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}
	if !created.IsActive {
		t.Fatalf("expected new product to be active")
	}

	var item models.InventoryItem
	if err := db.Where("product_id = ?", created.ID).First(&item).Error; err != nil {
		t.Fatalf("expected inventory row for new product: %v", err)
	}
	if item.AvailableQty != 10 {
		t.Fatalf("expected available qty 10, got %d", item.AvailableQty)
	}

	if _, err := svc.CreateProduct(ctx, CreateProductInput{Name: "", PriceCents: 100}); err == nil {
		t.Fatalf("expected validation error for empty name")
	}
	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "Bad", PriceCents: -1})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for negative price, got %v", err)
	}
}

func TestGetProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	product := seedProduct(t, db, "Widget", 1299, true)

	got, err := svc.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Name != "Widget" {
		t.Fatalf("expected Widget, got %q", got.Name)
	}

	_, err = svc.GetProduct(ctx, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, name string, priceCents int64, active bool) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:         uuid.New(),
		Name:       name,
		PriceCents: priceCents,
		IsActive:   active,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	if !active {
		// The column default would otherwise clobber the zero value on insert.
		if err := db.Model(product).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate product %s: %v", name, err)
		}
	}
	return product
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.InventoryItem{}); err != nil {
		t.Fatalf("migrate catalog: %v", err)
	}
	return db
}
