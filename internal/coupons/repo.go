package coupons

import (
	"context"

	"gorm.io/gorm"

	"github.com/craftroot/storefront-backend/pkg/db/models"
)

// Repository defines persistence operations for the coupons table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
	Update(ctx context.Context, code string, updates map[string]any) error
	List(ctx context.Context, limit int) ([]models.Coupon, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a coupons repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	if err := r.db.WithContext(ctx).Create(coupon).Error; err != nil {
		return nil, err
	}
	return coupon, nil
}

func (r *repository) Update(ctx context.Context, code string, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Coupon{}).
		Where("code = ?", code).
		Updates(updates).Error
}

func (r *repository) List(ctx context.Context, limit int) ([]models.Coupon, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Coupon
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
