package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/craftroot/storefront-backend/pkg/db/models"
	pkgerrors "github.com/craftroot/storefront-backend/pkg/errors"
)

// ReleaseReservation returns one reservation's stock to the ledger. The
// released_at flip is conditional, so a duplicate release of the same
// reservation is a no-op and can never double-credit stock. Returns true
// when this call performed the release.
func ReleaseReservation(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}
	if reservationID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	var row models.InventoryReservation
	if err := tx.WithContext(ctx).Where("id = ?", reservationID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if row.ReleasedAt != nil {
		return false, nil
	}

	res := tx.WithContext(ctx).Model(&models.InventoryReservation{}).
		Where("id = ? AND released_at IS NULL", reservationID).
		Update("released_at", time.Now().UTC())
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "mark reservation released")
	}
	if res.RowsAffected == 0 {
		// Lost the race to a concurrent release.
		return false, nil
	}

	credit := tx.WithContext(ctx).Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty + ?,
			reserved_qty = reserved_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND reserved_qty >= ?
	`, row.Qty, row.Qty, row.ProductID, row.Qty)
	if credit.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, credit.Error, "credit inventory")
	}
	if credit.RowsAffected == 0 {
		// The ledger holds less reserved stock than this reservation claims.
		// Failing here rolls back the released_at flip with the transaction.
		return false, pkgerrors.New(pkgerrors.CodeConflict, "inventory ledger out of sync with reservation").
			WithDetails(map[string]any{"reservation_id": reservationID, "product_id": row.ProductID})
	}
	return true, nil
}

// ReleaseOrder releases every unreleased reservation belonging to the order.
// Per-reservation failures are aggregated so one bad row does not strand the
// rest of the compensation.
func ReleaseOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var rows []models.InventoryReservation
	if err := tx.WithContext(ctx).Where("order_id = ? AND released_at IS NULL", orderID).Find(&rows).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order reservations")
	}

	var errs error
	for _, row := range rows {
		if _, err := ReleaseReservation(ctx, tx, row.ID); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
