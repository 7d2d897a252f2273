package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftroot/storefront-backend/pkg/db/models"
	"github.com/craftroot/storefront-backend/pkg/enums"
	"github.com/craftroot/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error)
	TransitionPaymentStatus(ctx context.Context, orderID uuid.UUID, from, to enums.PaymentStatus, extra map[string]any) (bool, error)
	TransitionRefundStatus(ctx context.Context, orderID uuid.UUID, from, to enums.RefundStatus, extra map[string]any) (bool, error)
	RecordTransition(ctx context.Context, transition *models.OrderTransition) error
	ListCustomerOrders(ctx context.Context, customerRef string, params pagination.Params) (*OrderList, error)
	ListByPaymentStatus(ctx context.Context, status enums.PaymentStatus, params pagination.Params) (*OrderList, error)
	ListByRefundStatus(ctx context.Context, status enums.RefundStatus, params pagination.Params) (*OrderList, error)
}
