package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftroot/storefront-backend/pkg/enums"
	"github.com/craftroot/storefront-backend/pkg/types"
)

// Order is the aggregate the three workflows mutate. Each workflow owns a
// disjoint field group; every state move goes through a conditional UPDATE.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber   string              `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerRef   string              `gorm:"column:customer_ref;not null;index"`
	Status        enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`

	// ItemsCents is the amount charged for items after discount, so
	// TotalCents = ItemsCents + TaxCents + ShippingCents always holds.
	ItemsCents    int64 `gorm:"column:items_cents;not null"`
	DiscountCents int64 `gorm:"column:discount_cents;not null;default:0"`
	TaxCents      int64 `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents int64 `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents    int64 `gorm:"column:total_cents;not null"`

	CouponCode        *string       `gorm:"column:coupon_code"`
	PaymentReceiptRef *string       `gorm:"column:payment_receipt_ref"`
	ShippingAddress   types.Address `gorm:"column:shipping_address;type:jsonb;serializer:json"`

	CancelReason  *string `gorm:"column:cancel_reason"`
	CancelComment *string `gorm:"column:cancel_comment"`
	StaffComment  *string `gorm:"column:staff_comment"`

	RefundStatus       enums.RefundStatus `gorm:"column:refund_status;type:refund_status;not null;default:'none'"`
	RefundReason       *string            `gorm:"column:refund_reason"`
	RefundComment      *string            `gorm:"column:refund_comment"`
	AdminRefundComment *string            `gorm:"column:admin_refund_comment"`
	RefundRequestedAt  *time.Time         `gorm:"column:refund_requested_at"`

	ConfirmedAt *time.Time `gorm:"column:confirmed_at"`
	ShippedAt   *time.Time `gorm:"column:shipped_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
