package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftroot/storefront-backend/pkg/db/models"
	"github.com/craftroot/storefront-backend/pkg/enums"
	"github.com/craftroot/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Omit("Items").Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// TransitionStatus performs the status move as a single conditional UPDATE.
// The from-state check rides inside the statement, so a concurrent mover
// loses with zero rows affected instead of clobbering the state.
func (r *repository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	for key, value := range extra {
		updates[key] = value
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TransitionPaymentStatus is the payment-side counterpart of TransitionStatus.
func (r *repository) TransitionPaymentStatus(ctx context.Context, orderID uuid.UUID, from, to enums.PaymentStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{
		"payment_status": to,
		"updated_at":     time.Now(),
	}
	for key, value := range extra {
		updates[key] = value
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TransitionRefundStatus is the refund-side counterpart of TransitionStatus.
func (r *repository) TransitionRefundStatus(ctx context.Context, orderID uuid.UUID, from, to enums.RefundStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{
		"refund_status": to,
		"updated_at":    time.Now(),
	}
	for key, value := range extra {
		updates[key] = value
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND refund_status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) RecordTransition(ctx context.Context, transition *models.OrderTransition) error {
	if transition.ID == uuid.Nil {
		transition.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(transition).Error
}

func (r *repository) ListCustomerOrders(ctx context.Context, customerRef string, params pagination.Params) (*OrderList, error) {
	return r.listOrders(ctx, params, func(query *gorm.DB) *gorm.DB {
		return query.Where("customer_ref = ?", customerRef)
	})
}

func (r *repository) ListByPaymentStatus(ctx context.Context, status enums.PaymentStatus, params pagination.Params) (*OrderList, error) {
	return r.listOrders(ctx, params, func(query *gorm.DB) *gorm.DB {
		return query.Where("payment_status = ?", status)
	})
}

func (r *repository) ListByRefundStatus(ctx context.Context, status enums.RefundStatus, params pagination.Params) (*OrderList, error) {
	return r.listOrders(ctx, params, func(query *gorm.DB) *gorm.DB {
		return query.Where("refund_status = ?", status)
	})
}

func (r *repository) listOrders(ctx context.Context, params pagination.Params, scope func(*gorm.DB) *gorm.DB) (*OrderList, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)
	decodedCursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := scope(r.db.WithContext(ctx).Model(&models.Order{}))
	if decodedCursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID)
	}

	var rows []models.Order
	err = query.
		Preload("Items").
		Order("created_at DESC").Order("id DESC").
		Limit(limitWithBuffer).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	resultRows := rows
	nextCursor := ""
	if len(rows) > normalizedLimit {
		resultRows = rows[:normalizedLimit]
		last := resultRows[len(resultRows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	summaries := make([]OrderSummary, 0, len(resultRows))
	for _, row := range resultRows {
		summaries = append(summaries, OrderSummary{
			ID:            row.ID,
			OrderNumber:   row.OrderNumber,
			Status:        row.Status,
			PaymentStatus: row.PaymentStatus,
			RefundStatus:  row.RefundStatus,
			TotalCents:    row.TotalCents,
			ItemCount:     len(row.Items),
			CreatedAt:     row.CreatedAt,
		})
	}
	return &OrderList{Orders: summaries, NextCursor: nextCursor}, nil
}
