package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryReservation records one provisional stock decrement tied to an
// order item. Release flips released_at conditionally, so a retried
// compensation can never credit the same reservation twice.
type InventoryReservation struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID  uuid.UUID  `gorm:"column:product_id;type:uuid;not null;index"`
	Qty        int        `gorm:"column:qty;not null"`
	ReleasedAt *time.Time `gorm:"column:released_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
