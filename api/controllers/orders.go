package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/craftroot/storefront-backend/api/middleware"
	"github.com/craftroot/storefront-backend/api/responses"
	"github.com/craftroot/storefront-backend/api/validators"
	ordersvc "github.com/craftroot/storefront-backend/internal/orders"
	"github.com/craftroot/storefront-backend/pkg/db/models"
	"github.com/craftroot/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftroot/storefront-backend/pkg/errors"
	"github.com/craftroot/storefront-backend/pkg/logger"
	"github.com/craftroot/storefront-backend/pkg/pagination"
	"github.com/craftroot/storefront-backend/pkg/types"
)

// OrderCreate places a new order for the authenticated customer.
func OrderCreate(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		customerRef, err := requireCustomerRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(customerRef, actorRole(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// OrderCancel cancels a pending or processing order and releases its stock.
func OrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		var payload cancelOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ordersvc.CancelOrderInput{
			OrderID:     orderID,
			CustomerRef: customerRef,
			Reason:      strings.TrimSpace(payload.Reason),
			Comment:     payload.Comment,
			ActorRole:   actorRole(r),
		}
		if err := svc.Cancel(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": string(enums.OrderStatusCancelled)})
	}
}

// OrderConfirm stamps the customer's confirmation on a pending order.
func OrderConfirm(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		if err := svc.Confirm(r.Context(), orderID, customerRef); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "confirmed"})
	}
}

// OrderDetail returns the full order after an ownership check.
func OrderDetail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
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

		order, err := svc.Get(r.Context(), orderID, customerRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderList returns the customer's orders, newest first, cursor paginated.
func OrderList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		customerRef, err := requireCustomerRef(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListCustomerOrders(r.Context(), customerRef, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// OrderShip moves a processing order to shipped. Staff only.
func OrderShip(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return fulfillmentHandler(svc, logg, svcShip, string(enums.OrderStatusShipped))
}

// OrderDeliver moves a shipped order to delivered. Staff only.
func OrderDeliver(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return fulfillmentHandler(svc, logg, svcDeliver, string(enums.OrderStatusDelivered))
}

type fulfillmentCall func(svc ordersvc.Service, r *http.Request, input ordersvc.FulfillmentInput) error

func svcShip(svc ordersvc.Service, r *http.Request, input ordersvc.FulfillmentInput) error {
	return svc.MarkShipped(r.Context(), input)
}

func svcDeliver(svc ordersvc.Service, r *http.Request, input ordersvc.FulfillmentInput) error {
	return svc.MarkDelivered(r.Context(), input)
}

func fulfillmentHandler(svc ordersvc.Service, logg *logger.Logger, call fulfillmentCall, resultStatus string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ordersvc.FulfillmentInput{
			OrderID:   orderID,
			ActorRef:  middleware.CustomerRefFromContext(r.Context()),
			ActorRole: actorRole(r),
		}
		if err := call(svc, r, input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": resultStatus})
	}
}

type createOrderRequest struct {
	Items           []createOrderItemPayload `json:"items" validate:"required,min=1,dive"`
	CouponCode      *string                  `json:"coupon_code"`
	PaymentMethod   string                   `json:"payment_method" validate:"required"`
	ShippingAddress types.Address            `json:"shipping_address" validate:"required"`
}

type createOrderItemPayload struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

func (p createOrderRequest) toInput(customerRef string, role enums.ActorRole) (ordersvc.CreateOrderInput, error) {
	method, err := enums.ParsePaymentMethod(p.PaymentMethod)
	if err != nil {
		return ordersvc.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	items := make([]ordersvc.CreateOrderItemInput, len(p.Items))
	for i, item := range p.Items {
		items[i] = ordersvc.CreateOrderItemInput{
			ProductID: item.ProductID,
			Qty:       item.Qty,
		}
	}

	return ordersvc.CreateOrderInput{
		CustomerRef:     customerRef,
		Items:           items,
		CouponCode:      p.CouponCode,
		PaymentMethod:   method,
		ShippingAddress: p.ShippingAddress,
		ActorRole:       role,
	}, nil
}

type cancelOrderRequest struct {
	Reason  string  `json:"reason" validate:"required"`
	Comment *string `json:"comment"`
}

type orderResponse struct {
	ID                 uuid.UUID           `json:"id"`
	OrderNumber        string              `json:"order_number"`
	Status             enums.OrderStatus   `json:"status"`
	PaymentStatus      enums.PaymentStatus `json:"payment_status"`
	PaymentMethod      enums.PaymentMethod `json:"payment_method"`
	ItemsCents         int64               `json:"items_cents"`
	DiscountCents      int64               `json:"discount_cents"`
	TaxCents           int64               `json:"tax_cents"`
	ShippingCents      int64               `json:"shipping_cents"`
	TotalCents         int64               `json:"total_cents"`
	CouponCode         *string             `json:"coupon_code,omitempty"`
	PaymentReceiptRef  *string             `json:"payment_receipt_ref,omitempty"`
	ShippingAddress    types.Address       `json:"shipping_address"`
	CancelReason       *string             `json:"cancel_reason,omitempty"`
	RefundStatus       enums.RefundStatus  `json:"refund_status"`
	RefundReason       *string             `json:"refund_reason,omitempty"`
	AdminRefundComment *string             `json:"admin_refund_comment,omitempty"`
	ConfirmedAt        *time.Time          `json:"confirmed_at,omitempty"`
	ShippedAt          *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	Items              []orderItemResponse `json:"items"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

type orderItemResponse struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Qty            int       `json:"qty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
		})
	}

	return orderResponse{
		ID:                 order.ID,
		OrderNumber:        order.OrderNumber,
		Status:             order.Status,
		PaymentStatus:      order.PaymentStatus,
		PaymentMethod:      order.PaymentMethod,
		ItemsCents:         order.ItemsCents,
		DiscountCents:      order.DiscountCents,
		TaxCents:           order.TaxCents,
		ShippingCents:      order.ShippingCents,
		TotalCents:         order.TotalCents,
		CouponCode:         order.CouponCode,
		PaymentReceiptRef:  order.PaymentReceiptRef,
		ShippingAddress:    order.ShippingAddress,
		CancelReason:       order.CancelReason,
		RefundStatus:       order.RefundStatus,
		RefundReason:       order.RefundReason,
		AdminRefundComment: order.AdminRefundComment,
		ConfirmedAt:        order.ConfirmedAt,
		ShippedAt:          order.ShippedAt,
		DeliveredAt:        order.DeliveredAt,
		CancelledAt:        order.CancelledAt,
		Items:              items,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
}

func requireCustomerRef(r *http.Request) (string, error) {
	customerRef := middleware.CustomerRefFromContext(r.Context())
	if customerRef == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	return customerRef, nil
}

func actorRole(r *http.Request) enums.ActorRole {
	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return enums.ActorRoleCustomer
	}
	return role
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

func listParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
