package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftroot/storefront-backend/pkg/enums"
	"github.com/craftroot/storefront-backend/pkg/types"
)

// CreateOrderItemInput is one requested line in a new order.
type CreateOrderItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

// CreateOrderInput captures everything the customer submits at checkout.
// Prices are never taken from here; the catalog is the only price source.
type CreateOrderInput struct {
	CustomerRef     string
	Items           []CreateOrderItemInput
	CouponCode      *string
	PaymentMethod   enums.PaymentMethod
	ShippingAddress types.Address
	ActorRole       enums.ActorRole
}

// CancelOrderInput carries the customer's cancellation request.
type CancelOrderInput struct {
	OrderID     uuid.UUID
	CustomerRef string
	Reason      string
	Comment     *string
	ActorRole   enums.ActorRole
}

// FulfillmentInput carries a staff-side shipped/delivered transition.
type FulfillmentInput struct {
	OrderID   uuid.UUID
	ActorRef  string
	ActorRole enums.ActorRole
}

// OrderItemSummary is a line item as returned to clients.
type OrderItemSummary struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Qty            int       `json:"qty"`
}

// OrderSummary exposes the fields returned in the customer order list.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	RefundStatus  enums.RefundStatus  `json:"refund_status"`
	TotalCents    int64               `json:"total_cents"`
	ItemCount     int                 `json:"item_count"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
