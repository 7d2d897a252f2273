package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderTransition is the append-only audit trail of every committed state
// move on an order.
type OrderTransition struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	Actor     string    `gorm:"column:actor;not null"`
	ActorRole string    `gorm:"column:actor_role;not null"`
	Field     string    `gorm:"column:field;not null"`
	FromState string    `gorm:"column:from_state;not null"`
	ToState   string    `gorm:"column:to_state;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
