package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftroot/storefront-backend/pkg/db/models"
	pkgerrors "github.com/craftroot/storefront-backend/pkg/errors"
)

// ReservationRequest asks for qty units of a product on behalf of one order.
type ReservationRequest struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Qty       int
}

// ReservationResult reports the per-product outcome of a reserve call.
type ReservationResult struct {
	ReservationID uuid.UUID
	ProductID     uuid.UUID
	Qty           int
	Reserved      bool
	Reason        string
}

// Reserve decrements available stock with a conditional update per product and
// records one reservation row per request. A request that cannot be satisfied
// is reported in its result, not as an error; the caller decides whether to
// compensate.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) ([]ReservationResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reservation qty must be positive for product %s", req.ProductID))
		}
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation product id required")
		}
	}

	results := make([]ReservationResult, len(requests))
	for i, req := range requests {
		results[i] = ReservationResult{ProductID: req.ProductID, Qty: req.Qty}

		res := tx.WithContext(ctx).Exec(`
			UPDATE inventory_items
			SET available_qty = available_qty - ?,
				reserved_qty = reserved_qty + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE product_id = ? AND available_qty >= ?
		`, req.Qty, req.Qty, req.ProductID, req.Qty)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
		}
		if res.RowsAffected == 0 {
			results[i].Reason = "insufficient stock"
			continue
		}

		row := models.InventoryReservation{
			ID:        uuid.New(),
			OrderID:   req.OrderID,
			ProductID: req.ProductID,
			Qty:       req.Qty,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reservation")
		}
		results[i].ReservationID = row.ID
		results[i].Reserved = true
	}
	return results, nil
}
