package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/craftroot/storefront-backend/api/responses"
	"github.com/craftroot/storefront-backend/api/validators"
	couponsvc "github.com/craftroot/storefront-backend/internal/coupons"
	"github.com/craftroot/storefront-backend/pkg/db/models"
	pkgerrors "github.com/craftroot/storefront-backend/pkg/errors"
	"github.com/craftroot/storefront-backend/pkg/logger"
)

// CouponCreate registers a new discount coupon. Staff only.
func CouponCreate(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		var payload createCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupon, err := svc.CreateCoupon(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCouponResponse(coupon))
	}
}

// CouponDeactivate disables a coupon without touching its usage history.
func CouponDeactivate(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		code := strings.TrimSpace(chi.URLParam(r, "code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required"))
			return
		}

		if err := svc.Deactivate(r.Context(), code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// CouponList returns the most recent coupons for the staff dashboard.
func CouponList(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupons service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		coupons, err := svc.ListCoupons(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]couponResponse, 0, len(coupons))
		for i := range coupons {
			out = append(out, newCouponResponse(&coupons[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type createCouponRequest struct {
	Code               string      `json:"code" validate:"required"`
	DiscountPercent    int         `json:"discount_percent" validate:"required,min=1,max=100"`
	ApplicableProducts []uuid.UUID `json:"applicable_products"`
	UsageLimit         *int        `json:"usage_limit"`
	ValidFrom          *time.Time  `json:"valid_from"`
	ValidUntil         *time.Time  `json:"valid_until"`
}

func (p createCouponRequest) toInput() couponsvc.CreateCouponInput {
	input := couponsvc.CreateCouponInput{
		Code:               p.Code,
		DiscountPercent:    p.DiscountPercent,
		ApplicableProducts: p.ApplicableProducts,
		UsageLimit:         p.UsageLimit,
		ValidUntil:         p.ValidUntil,
	}
	if p.ValidFrom != nil {
		input.ValidFrom = *p.ValidFrom
	}
	return input
}

type couponResponse struct {
	Code               string      `json:"code"`
	DiscountPercent    int         `json:"discount_percent"`
	IsActive           bool        `json:"is_active"`
	UsageLimit         *int        `json:"usage_limit,omitempty"`
	UsedCount          int         `json:"used_count"`
	ApplicableProducts []uuid.UUID `json:"applicable_products,omitempty"`
	ValidFrom          time.Time   `json:"valid_from"`
	ValidUntil         *time.Time  `json:"valid_until,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

func newCouponResponse(coupon *models.Coupon) couponResponse {
	return couponResponse{
		Code:               coupon.Code,
		DiscountPercent:    coupon.DiscountPercent,
		IsActive:           coupon.IsActive,
		UsageLimit:         coupon.UsageLimit,
		UsedCount:          coupon.UsedCount,
		ApplicableProducts: coupon.ApplicableProducts,
		ValidFrom:          coupon.ValidFrom,
		ValidUntil:         coupon.ValidUntil,
		CreatedAt:          coupon.CreatedAt,
	}
}
