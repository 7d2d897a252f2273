package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftroot/storefront-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order with its reserved items.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerRef string    `json:"customer_ref"`
	TotalCents  int64     `json:"total_cents"`
	CouponCode  *string   `json:"coupon_code,omitempty"`
	ItemCount   int       `json:"item_count"`
}

// OrderCancelledEvent is emitted whenever an order is cancelled before shipment.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerRef string    `json:"customer_ref"`
	Reason      string    `json:"reason"`
	Comment     string    `json:"comment,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// OrderShippedEvent surfaces shipment confirmation details.
type OrderShippedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerRef string    `json:"customer_ref"`
	ShippedAt   time.Time `json:"shipped_at"`
}

// OrderDeliveredEvent closes out the fulfillment cycle.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerRef string    `json:"customer_ref"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// PaymentPendingVerificationEvent is emitted when a customer uploads a receipt.
type PaymentPendingVerificationEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerRef string    `json:"customer_ref"`
	ReceiptRef  string    `json:"receipt_ref"`
}

// PaymentDecidedEvent carries the staff verdict on an uploaded receipt.
type PaymentDecidedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	CustomerRef   string              `json:"customer_ref"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	StaffComment  string              `json:"staff_comment,omitempty"`
}

// RefundRequestedEvent is emitted when a customer opens a refund case.
type RefundRequestedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerRef string    `json:"customer_ref"`
	Reason      string    `json:"reason"`
	Comment     string    `json:"comment,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// RefundDecidedEvent carries the admin verdict on a refund case.
type RefundDecidedEvent struct {
	OrderID      uuid.UUID          `json:"order_id"`
	OrderNumber  string             `json:"order_number"`
	CustomerRef  string             `json:"customer_ref"`
	RefundStatus enums.RefundStatus `json:"refund_status"`
	AdminComment string             `json:"admin_comment"`
}

// RefundProcessedEvent confirms the approved refund has been paid out.
type RefundProcessedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerRef string    `json:"customer_ref"`
	AmountCents int64     `json:"amount_cents"`
	ProcessedAt time.Time `json:"processed_at"`
}
