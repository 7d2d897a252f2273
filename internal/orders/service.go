package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/craftroot/storefront-backend/internal/inventory"
	"github.com/craftroot/storefront-backend/pkg/config"
	"github.com/craftroot/storefront-backend/pkg/db/models"
	"github.com/craftroot/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftroot/storefront-backend/pkg/errors"
	"github.com/craftroot/storefront-backend/pkg/outbox"
	"github.com/craftroot/storefront-backend/pkg/outbox/payloads"
	"github.com/craftroot/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type productCatalog interface {
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type couponRedeemer interface {
	Validate(ctx context.Context, code string, productIDs []uuid.UUID, now time.Time) (int, error)
	ConsumeTx(ctx context.Context, tx *gorm.DB, code string) error
}

// InventoryLedger reserves stock at checkout and returns it on cancellation.
type InventoryLedger interface {
	ReserveItems(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error)
	ReleaseOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// Service defines order lifecycle operations beyond repository reads.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelOrderInput) error
	Confirm(ctx context.Context, orderID uuid.UUID, customerRef string) error
	MarkShipped(ctx context.Context, input FulfillmentInput) error
	MarkDelivered(ctx context.Context, input FulfillmentInput) error
	Get(ctx context.Context, orderID uuid.UUID, customerRef string) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerRef string, params pagination.Params) (*OrderList, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	catalog   productCatalog
	coupons   couponRedeemer
	inventory InventoryLedger
	outbox    outboxPublisher
	pricing   config.PricingConfig
}

// NewService builds an orders service with the required collaborators.
func NewService(repo Repository, tx txRunner, catalog productCatalog, coupons couponRedeemer, ledger InventoryLedger, publisher outboxPublisher, pricing config.PricingConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon redeemer required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		catalog:   catalog,
		coupons:   coupons,
		inventory: ledger,
		outbox:    publisher,
		pricing:   pricing,
	}, nil
}

// Create builds the order inside one transaction: re-price from the catalog,
// reserve stock, consume the coupon slot, then persist. Any failure rolls the
// whole thing back, so a failed order never leaks a reservation or a coupon use.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	input.CustomerRef = strings.TrimSpace(input.CustomerRef)
	if input.CustomerRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}

	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	productIDs := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in order; merge quantities into one line")
		}
		seen[item.ProductID] = struct{}{}
		productIDs = append(productIDs, item.ProductID)
	}

	now := time.Now().UTC()

	// Re-price from the catalog before touching the coupon, so an unknown or
	// inactive product is the error the customer sees.
	products, err := s.catalog.FindActiveByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range productIDs {
		if _, ok := products[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product unavailable").
				WithDetails(map[string]any{"product_id": id})
		}
	}

	var couponCode *string
	discountPercent := 0
	if input.CouponCode != nil {
		code := strings.TrimSpace(strings.ToUpper(*input.CouponCode))
		if code != "" {
			percent, err := s.coupons.Validate(ctx, code, productIDs, now)
			if err != nil {
				return nil, err
			}
			discountPercent = percent
			couponCode = &code
		}
	}

	orderID := uuid.New()
	order := &models.Order{
		ID:              orderID,
		OrderNumber:     newOrderNumber(now),
		CustomerRef:     input.CustomerRef,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentMethod:   input.PaymentMethod,
		RefundStatus:    enums.RefundStatusNone,
		CouponCode:      couponCode,
		ShippingAddress: input.ShippingAddress,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		requests := make([]inventory.ReservationRequest, 0, len(input.Items))
		for _, item := range input.Items {
			requests = append(requests, inventory.ReservationRequest{
				OrderID:   orderID,
				ProductID: item.ProductID,
				Qty:       item.Qty,
			})
		}
		results, rerr := s.inventory.ReserveItems(ctx, tx, requests)
		if rerr != nil {
			return rerr
		}
		reservationByProduct := make(map[uuid.UUID]inventory.ReservationResult, len(results))
		var outOfStock []uuid.UUID
		for _, result := range results {
			if !result.Reserved {
				outOfStock = append(outOfStock, result.ProductID)
				continue
			}
			reservationByProduct[result.ProductID] = result
		}
		if len(outOfStock) > 0 {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
				WithDetails(map[string]any{"product_ids": outOfStock})
		}

		if couponCode != nil {
			if cerr := s.coupons.ConsumeTx(ctx, tx, *couponCode); cerr != nil {
				return cerr
			}
		}

		items := make([]models.OrderItem, 0, len(input.Items))
		for _, item := range input.Items {
			product := products[item.ProductID]
			items = append(items, models.OrderItem{
				ID:             uuid.New(),
				OrderID:        orderID,
				ProductID:      item.ProductID,
				Name:           product.Name,
				UnitPriceCents: product.PriceCents,
				Qty:            item.Qty,
				ReservationID:  reservationByProduct[item.ProductID].ReservationID,
			})
		}

		order.ItemsCents, order.DiscountCents, order.TaxCents, order.ShippingCents, order.TotalCents =
			computeTotals(items, discountPercent, s.pricing)

		if _, cerr := repo.CreateOrder(ctx, order); cerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "create order")
		}
		if cerr := repo.CreateOrderItems(ctx, items); cerr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "create order items")
		}
		order.Items = items

		if terr := recordTransition(ctx, repo, orderID, input.CustomerRef, input.ActorRole, "status", "none", order.Status.String()); terr != nil {
			return terr
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Version:       1,
			Actor:         buildActor(input.CustomerRef, input.ActorRole),
			Data: payloads.OrderCreatedEvent{
				OrderID:     orderID,
				OrderNumber: order.OrderNumber,
				CustomerRef: order.CustomerRef,
				TotalCents:  order.TotalCents,
				CouponCode:  order.CouponCode,
				ItemCount:   len(order.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel moves a pending or processing order to cancelled and returns its
// reserved stock. A consumed coupon slot stays consumed. Cancelling an
// already-cancelled order is a no-op.
func (s *service) Cancel(ctx context.Context, input CancelOrderInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if input.CustomerRef != "" && order.CustomerRef != input.CustomerRef {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled in current state")
		}

		now := time.Now().UTC()
		extra := map[string]any{
			"cancelled_at":  now,
			"cancel_reason": input.Reason,
		}
		if input.Comment != nil {
			extra["cancel_comment"] = *input.Comment
		}
		moved, err := repo.TransitionStatus(ctx, input.OrderID, order.Status, enums.OrderStatusCancelled, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !moved {
			// Lost the race; re-read to tell no-op from conflict.
			current, rerr := repo.FindOrder(ctx, input.OrderID)
			if rerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, rerr, "reload order")
			}
			if current.Status == enums.OrderStatusCancelled {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled in current state")
		}

		if err := s.inventory.ReleaseOrder(ctx, tx, input.OrderID); err != nil {
			return err
		}

		actorRef := input.CustomerRef
		if actorRef == "" {
			actorRef = "staff"
		}
		if err := recordTransition(ctx, repo, input.OrderID, actorRef, input.ActorRole, "status", order.Status.String(), enums.OrderStatusCancelled.String()); err != nil {
			return err
		}

		comment := ""
		if input.Comment != nil {
			comment = *input.Comment
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(actorRef, input.ActorRole),
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerRef: order.CustomerRef,
				Reason:      input.Reason,
				Comment:     comment,
				CancelledAt: now,
			},
		})
	})
}

// Confirm stamps the customer's acknowledgement. It never moves status.
func (s *service) Confirm(ctx context.Context, orderID uuid.UUID, customerRef string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if customerRef != "" && order.CustomerRef != customerRef {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}
		if order.ConfirmedAt != nil {
			return nil
		}
		if err := repo.UpdateOrder(ctx, orderID, map[string]any{"confirmed_at": time.Now().UTC()}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		return nil
	})
}

func (s *service) MarkShipped(ctx context.Context, input FulfillmentInput) error {
	now := time.Now().UTC()
	return s.fulfillmentTransition(ctx, input,
		enums.OrderStatusProcessing, enums.OrderStatusShipped,
		map[string]any{"shipped_at": now},
		func(order *models.Order) (enums.OutboxEventType, any) {
			return enums.EventOrderShipped, payloads.OrderShippedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerRef: order.CustomerRef,
				ShippedAt:   now,
			}
		})
}

func (s *service) MarkDelivered(ctx context.Context, input FulfillmentInput) error {
	now := time.Now().UTC()
	return s.fulfillmentTransition(ctx, input,
		enums.OrderStatusShipped, enums.OrderStatusDelivered,
		map[string]any{"delivered_at": now},
		func(order *models.Order) (enums.OutboxEventType, any) {
			return enums.EventOrderDelivered, payloads.OrderDeliveredEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerRef: order.CustomerRef,
				DeliveredAt: now,
			}
		})
}

func (s *service) fulfillmentTransition(ctx context.Context, input FulfillmentInput, from, to enums.OrderStatus, extra map[string]any, eventFor func(*models.Order) (enums.OutboxEventType, any)) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.ActorRole.IsStaff() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == to {
			return nil
		}
		if order.Status != from {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order must be %s to move to %s", from, to))
		}

		moved, err := repo.TransitionStatus(ctx, input.OrderID, from, to, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			current, rerr := repo.FindOrder(ctx, input.OrderID)
			if rerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, rerr, "reload order")
			}
			if current.Status == to {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order must be %s to move to %s", from, to))
		}

		if err := recordTransition(ctx, repo, input.OrderID, input.ActorRef, input.ActorRole, "status", from.String(), to.String()); err != nil {
			return err
		}

		order.Status = to
		eventType, payload := eventFor(order)
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ActorRef, input.ActorRole),
			Data:          payload,
		})
	})
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID, customerRef string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if customerRef != "" && order.CustomerRef != customerRef {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
	}
	return order, nil
}

func (s *service) ListCustomerOrders(ctx context.Context, customerRef string, params pagination.Params) (*OrderList, error) {
	customerRef = strings.TrimSpace(customerRef)
	if customerRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	list, err := s.repo.ListCustomerOrders(ctx, customerRef, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// computeTotals derives the money columns from the snapshotted line items.
// items_cents is the amount charged for items, after discount, so
// total = items + tax + shipping always holds; discount_cents records the
// deduction for audit. Tax and shipping are computed on the charged amount.
func computeTotals(items []models.OrderItem, discountPercent int, pricing config.PricingConfig) (itemsCents, discountCents, taxCents, shippingCents, totalCents int64) {
	var grossCents int64
	for _, item := range items {
		grossCents += item.UnitPriceCents * int64(item.Qty)
	}

	discountCents = decimal.NewFromInt(grossCents).
		Mul(decimal.NewFromInt(int64(discountPercent))).
		Div(decimal.NewFromInt(100)).
		Round(0).IntPart()
	itemsCents = grossCents - discountCents

	taxCents = decimal.NewFromInt(itemsCents).
		Mul(decimal.NewFromInt(int64(pricing.TaxPercent))).
		Div(decimal.NewFromInt(100)).
		Round(0).IntPart()

	shippingCents = pricing.ShippingFlatCents
	if pricing.FreeShippingThresholdCents > 0 && itemsCents >= pricing.FreeShippingThresholdCents {
		shippingCents = 0
	}

	totalCents = itemsCents + taxCents + shippingCents
	return itemsCents, discountCents, taxCents, shippingCents, totalCents
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

func recordTransition(ctx context.Context, repo Repository, orderID uuid.UUID, actorRef string, role enums.ActorRole, field, from, to string) error {
	err := repo.RecordTransition(ctx, &models.OrderTransition{
		OrderID:   orderID,
		Actor:     actorRef,
		ActorRole: role.String(),
		Field:     field,
		FromState: from,
		ToState:   to,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transition")
	}
	return nil
}

func buildActor(customerRef string, role enums.ActorRole) *outbox.ActorRef {
	return &outbox.ActorRef{
		CustomerRef: customerRef,
		Role:        role.String(),
	}
}

type inventoryLedgerImpl struct{}

// NewInventoryLedger exposes the default stock ledger implementation.
func NewInventoryLedger() InventoryLedger {
	return inventoryLedgerImpl{}
}

func (inventoryLedgerImpl) ReserveItems(ctx context.Context, tx *gorm.DB, requests []inventory.ReservationRequest) ([]inventory.ReservationResult, error) {
	return inventory.Reserve(ctx, tx, requests)
}

func (inventoryLedgerImpl) ReleaseOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	return inventory.ReleaseOrder(ctx, tx, orderID)
}
