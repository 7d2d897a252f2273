package controllers

import (
	"net/http"
	"strings"

	"github.com/craftroot/storefront-backend/api/middleware"
	"github.com/craftroot/storefront-backend/api/responses"
	"github.com/craftroot/storefront-backend/api/validators"
	refundsvc "github.com/craftroot/storefront-backend/internal/refunds"
	"github.com/craftroot/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftroot/storefront-backend/pkg/errors"
	"github.com/craftroot/storefront-backend/pkg/logger"
)

// RefundRequest opens a refund request on a paid, cancelled order.
func RefundRequest(svc refundsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		customerRef, err := requireCustomerRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundRequestPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := refundsvc.RequestInput{
			OrderID:     orderID,
			CustomerRef: customerRef,
			Reason:      strings.TrimSpace(payload.Reason),
			Comment:     payload.Comment,
			ActorRole:   actorRole(r),
		}
		if err := svc.Request(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"refund_status": string(enums.RefundStatusRequested)})
	}
}

// RefundDecision records the admin verdict on a requested refund.
// A comment is mandatory either way so the customer always gets a reason.
func RefundDecision(svc refundsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundDecisionPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := refundsvc.DecideInput{
			OrderID:      orderID,
			Approve:      payload.Approve,
			AdminComment: strings.TrimSpace(payload.Comment),
			ActorRef:     middleware.CustomerRefFromContext(r.Context()),
			ActorRole:    actorRole(r),
		}
		if err := svc.Decide(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		verdict := enums.RefundStatusRejected
		if payload.Approve {
			verdict = enums.RefundStatusApproved
		}
		responses.WriteSuccess(w, map[string]string{"refund_status": string(verdict)})
	}
}

// RefundMarkProcessed confirms an approved refund has been paid out.
func RefundMarkProcessed(svc refundsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := refundsvc.MarkProcessedInput{
			OrderID:   orderID,
			ActorRef:  middleware.CustomerRefFromContext(r.Context()),
			ActorRole: actorRole(r),
		}
		if err := svc.MarkProcessed(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"refund_status": string(enums.RefundStatusProcessed)})
	}
}

// RequestedRefundList returns orders with refunds awaiting adjudication.
func RequestedRefundList(svc refundsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refunds service unavailable"))
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListRequested(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

type refundRequestPayload struct {
	Reason  string  `json:"reason" validate:"required"`
	Comment *string `json:"comment"`
}

type refundDecisionPayload struct {
	Approve bool   `json:"approve"`
	Comment string `json:"comment" validate:"required"`
}
