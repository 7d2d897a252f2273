package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	ordersvc "github.com/craftroot/storefront-backend/internal/orders"
	refundsvc "github.com/craftroot/storefront-backend/internal/refunds"
	"github.com/craftroot/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftroot/storefront-backend/pkg/errors"
	"github.com/craftroot/storefront-backend/pkg/pagination"
)

type stubRefundsService struct {
	request       func(ctx context.Context, input refundsvc.RequestInput) error
	decide        func(ctx context.Context, input refundsvc.DecideInput) error
	markProcessed func(ctx context.Context, input refundsvc.MarkProcessedInput) error
}

func (s *stubRefundsService) Request(ctx context.Context, input refundsvc.RequestInput) error {
	if s.request != nil {
		return s.request(ctx, input)
	}
	return nil
}

func (s *stubRefundsService) Decide(ctx context.Context, input refundsvc.DecideInput) error {
	if s.decide != nil {
		return s.decide(ctx, input)
	}
	return nil
}

func (s *stubRefundsService) MarkProcessed(ctx context.Context, input refundsvc.MarkProcessedInput) error {
	if s.markProcessed != nil {
		return s.markProcessed(ctx, input)
	}
	return nil
}

func (s *stubRefundsService) ListRequested(ctx context.Context, params pagination.Params) (*ordersvc.OrderList, error) {
	return &ordersvc.OrderList{}, nil
}

func TestRefundRequest(t *testing.T) {
	orderID := uuid.New()
	var captured refundsvc.RequestInput
	svc := &stubRefundsService{
		request: func(_ context.Context, input refundsvc.RequestInput) error {
			captured = input
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/refund", `{"reason":"damaged on arrival"}`, "cust-1", enums.ActorRoleCustomer)
	req = withURLParam(req, "orderID", orderID.String())
	resp := httptest.NewRecorder()
	RefundRequest(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.OrderID != orderID || captured.Reason != "damaged on arrival" {
		t.Fatalf("unexpected input %+v", captured)
	}
}

func TestRefundDecisionRequiresComment(t *testing.T) {
	orderID := uuid.New()
	svc := &stubRefundsService{}

	req := authedRequest(http.MethodPost, "/api/v1/staff/orders/"+orderID.String()+"/refund-decision", `{"approve":true}`, "admin-1", enums.ActorRoleAdmin)
	req = withURLParam(req, "orderID", orderID.String())
	resp := httptest.NewRecorder()
	RefundDecision(svc, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
	if code := decodeErrorCode(t, resp.Body.Bytes()); code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation code got %s", code)
	}
}

func TestRefundDecisionApprove(t *testing.T) {
	orderID := uuid.New()
	var captured refundsvc.DecideInput
	svc := &stubRefundsService{
		decide: func(_ context.Context, input refundsvc.DecideInput) error {
			captured = input
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/staff/orders/"+orderID.String()+"/refund-decision", `{"approve":true,"comment":"verified with bank"}`, "admin-1", enums.ActorRoleAdmin)
	req = withURLParam(req, "orderID", orderID.String())
	resp := httptest.NewRecorder()
	RefundDecision(svc, nil)(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !captured.Approve || captured.AdminComment != "verified with bank" {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.ActorRef != "admin-1" || captured.ActorRole != enums.ActorRoleAdmin {
		t.Fatalf("expected actor identity to flow through, got %+v", captured)
	}
}

func TestRefundMarkProcessedPropagatesConflict(t *testing.T) {
	orderID := uuid.New()
	svc := &stubRefundsService{
		markProcessed: func(_ context.Context, _ refundsvc.MarkProcessedInput) error {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund must be approved before it can be processed")
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/staff/orders/"+orderID.String()+"/refund-processed", "", "staff-1", enums.ActorRoleStaff)
	req = withURLParam(req, "orderID", orderID.String())
	resp := httptest.NewRecorder()
	RefundMarkProcessed(svc, nil)(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}
