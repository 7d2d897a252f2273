package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a limited-use percentage discount. used_count only ever moves
// through the conditional UPDATE in the coupons service.
type Coupon struct {
	Code               string      `gorm:"column:code;primaryKey"`
	DiscountPercent    int         `gorm:"column:discount_percent;not null"`
	ApplicableProducts []uuid.UUID `gorm:"column:applicable_products;type:jsonb;serializer:json"`
	IsActive           bool        `gorm:"column:is_active;not null;default:true"`
	UsageLimit         *int        `gorm:"column:usage_limit"`
	UsedCount          int         `gorm:"column:used_count;not null;default:0"`
	ValidFrom          time.Time   `gorm:"column:valid_from;not null"`
	ValidUntil         *time.Time  `gorm:"column:valid_until"`
	CreatedAt          time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time   `gorm:"column:updated_at;autoUpdateTime"`
}
