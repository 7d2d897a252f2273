package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftroot/storefront-backend/pkg/db/models"
	pkgerrors "github.com/craftroot/storefront-backend/pkg/errors"
)

// Service owns coupon validation and the redemption counter.
type Service interface {
	Validate(ctx context.Context, code string, productIDs []uuid.UUID, now time.Time) (int, error)
	ConsumeTx(ctx context.Context, tx *gorm.DB, code string) error
	CreateCoupon(ctx context.Context, input CreateCouponInput) (*models.Coupon, error)
	Deactivate(ctx context.Context, code string) error
	ListCoupons(ctx context.Context, limit int) ([]models.Coupon, error)
}

// CreateCouponInput captures the staff-facing coupon creation fields.
type CreateCouponInput struct {
	Code               string
	DiscountPercent    int
	ApplicableProducts []uuid.UUID
	UsageLimit         *int
	ValidFrom          time.Time
	ValidUntil         *time.Time
}

type service struct {
	repo Repository
}

// NewService builds a coupons service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	return &service{repo: repo}, nil
}

// Validate returns the discount percentage when the coupon can be applied to
// the given products at the given instant, or the specific typed failure.
func (s *service) Validate(ctx context.Context, code string, productIDs []uuid.UUID, now time.Time) (int, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}

	coupon, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}

	if !coupon.IsActive {
		return 0, pkgerrors.New(pkgerrors.CodeCouponInactive, "coupon is not active")
	}
	if now.Before(coupon.ValidFrom) {
		return 0, pkgerrors.New(pkgerrors.CodeCouponExpired, "coupon is not yet valid")
	}
	if coupon.ValidUntil != nil && now.After(*coupon.ValidUntil) {
		return 0, pkgerrors.New(pkgerrors.CodeCouponExpired, "coupon has expired")
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return 0, pkgerrors.New(pkgerrors.CodeCouponExhausted, "coupon usage limit reached")
	}
	if len(coupon.ApplicableProducts) > 0 && !intersects(coupon.ApplicableProducts, productIDs) {
		return 0, pkgerrors.New(pkgerrors.CodeCouponNotApplicable, "coupon does not apply to these products")
	}

	return coupon.DiscountPercent, nil
}

// ConsumeTx takes one usage slot with a single conditional UPDATE. The limit
// is re-checked inside the statement, so two concurrent callers can never
// both take the last slot.
func (s *service) ConsumeTx(ctx context.Context, tx *gorm.DB, code string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for coupon consume")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE coupons
		SET used_count = used_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE code = ?
			AND is_active
			AND (usage_limit IS NULL OR used_count < usage_limit)
	`, code)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "consume coupon")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// Zero rows: re-read to report the precise reason.
	coupon, err := s.repo.WithTx(tx).FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload coupon")
	}
	if !coupon.IsActive {
		return pkgerrors.New(pkgerrors.CodeCouponInactive, "coupon is not active")
	}
	return pkgerrors.New(pkgerrors.CodeCouponExhausted, "coupon usage limit reached")
}

func (s *service) CreateCoupon(ctx context.Context, input CreateCouponInput) (*models.Coupon, error) {
	input.Code = strings.TrimSpace(strings.ToUpper(input.Code))
	if input.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	if input.DiscountPercent <= 0 || input.DiscountPercent > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be between 1 and 100")
	}
	if input.UsageLimit != nil && *input.UsageLimit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit must be positive when set")
	}
	if input.ValidFrom.IsZero() {
		input.ValidFrom = time.Now().UTC()
	}
	if input.ValidUntil != nil && input.ValidUntil.Before(input.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid_until must be after valid_from")
	}

	coupon := &models.Coupon{
		Code:               input.Code,
		DiscountPercent:    input.DiscountPercent,
		ApplicableProducts: input.ApplicableProducts,
		IsActive:           true,
		UsageLimit:         input.UsageLimit,
		ValidFrom:          input.ValidFrom,
		ValidUntil:         input.ValidUntil,
	}
	created, err := s.repo.Create(ctx, coupon)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create coupon")
	}
	return created, nil
}

func (s *service) Deactivate(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	if _, err := s.repo.FindByCode(ctx, code); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	if err := s.repo.Update(ctx, code, map[string]any{"is_active": false}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate coupon")
	}
	return nil
}

func (s *service) ListCoupons(ctx context.Context, limit int) ([]models.Coupon, error) {
	rows, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list coupons")
	}
	return rows, nil
}

func intersects(applicable, requested []uuid.UUID) bool {
	if len(requested) == 0 {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(applicable))
	for _, id := range applicable {
		set[id] = struct{}{}
	}
	for _, id := range requested {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
