package controllers

import (
	"net/http"
	"strings"

	"github.com/craftroot/storefront-backend/api/middleware"
	"github.com/craftroot/storefront-backend/api/responses"
	"github.com/craftroot/storefront-backend/api/validators"
	paymentsvc "github.com/craftroot/storefront-backend/internal/payments"
	pkgerrors "github.com/craftroot/storefront-backend/pkg/errors"
	"github.com/craftroot/storefront-backend/pkg/logger"
)

// ReceiptUpload attaches a payment receipt reference to the customer's order.
func ReceiptUpload(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
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

		var payload receiptUploadRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := paymentsvc.UploadReceiptInput{
			OrderID:     orderID,
			CustomerRef: customerRef,
			ReceiptRef:  strings.TrimSpace(payload.ReceiptRef),
			ActorRole:   actorRole(r),
		}
		if err := svc.UploadReceipt(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "pending_verification"})
	}
}

// PaymentDecision records the staff verdict on an uploaded receipt.
func PaymentDecision(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentDecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := paymentsvc.DecideInput{
			OrderID:      orderID,
			Approve:      payload.Approve,
			StaffComment: payload.Comment,
			ActorRef:     middleware.CustomerRefFromContext(r.Context()),
			ActorRole:    actorRole(r),
		}
		if err := svc.Decide(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		verdict := "failed"
		if payload.Approve {
			verdict = "paid"
		}
		responses.WriteSuccess(w, map[string]string{"payment_status": verdict})
	}
}

// PendingVerificationList returns orders whose receipts await a staff verdict.
func PendingVerificationList(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListPendingVerification(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

type receiptUploadRequest struct {
	ReceiptRef string `json:"receipt_ref" validate:"required"`
}

type paymentDecisionRequest struct {
	Approve bool    `json:"approve"`
	Comment *string `json:"comment"`
}
