package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftroot/storefront-backend/internal/orders"
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

// RequestInput opens a refund case on a paid, cancelled order.
type RequestInput struct {
	OrderID     uuid.UUID
	CustomerRef string
	Reason      string
	Comment     *string
	ActorRole   enums.ActorRole
}

// DecideInput carries the admin verdict on a requested refund.
type DecideInput struct {
	OrderID      uuid.UUID
	Approve      bool
	AdminComment string
	ActorRef     string
	ActorRole    enums.ActorRole
}

// MarkProcessedInput confirms an approved refund has been paid out.
type MarkProcessedInput struct {
	OrderID   uuid.UUID
	ActorRef  string
	ActorRole enums.ActorRole
}

// Service owns the refund adjudication workflow.
type Service interface {
	Request(ctx context.Context, input RequestInput) error
	Decide(ctx context.Context, input DecideInput) error
	MarkProcessed(ctx context.Context, input MarkProcessedInput) error
	ListRequested(ctx context.Context, params pagination.Params) (*orders.OrderList, error)
}

type service struct {
	repo   orders.Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a refunds service with the required collaborators.
func NewService(repo orders.Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher}, nil
}

// Request opens a refund case. Only a paid and cancelled order qualifies;
// repeating the request while it is still open is a no-op.
func (s *service) Request(ctx context.Context, input RequestInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
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
		if order.RefundStatus == enums.RefundStatusRequested {
			return nil
		}
		if order.PaymentStatus != enums.PaymentStatusPaid || order.Status != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refunds require a paid, cancelled order")
		}
		if order.RefundStatus != enums.RefundStatusNone {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund already adjudicated")
		}

		now := time.Now().UTC()
		extra := map[string]any{
			"refund_reason":       input.Reason,
			"refund_requested_at": now,
		}
		if input.Comment != nil {
			extra["refund_comment"] = *input.Comment
		}
		moved, err := repo.TransitionRefundStatus(ctx, input.OrderID,
			enums.RefundStatusNone, enums.RefundStatusRequested, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request refund")
		}
		if !moved {
			current, rerr := repo.FindOrder(ctx, input.OrderID)
			if rerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, rerr, "reload order")
			}
			if current.RefundStatus == enums.RefundStatusRequested {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund already adjudicated")
		}

		if err := recordTransition(ctx, repo, input.OrderID, order.CustomerRef, input.ActorRole, "refund_status",
			enums.RefundStatusNone.String(), enums.RefundStatusRequested.String()); err != nil {
			return err
		}

		comment := ""
		if input.Comment != nil {
			comment = *input.Comment
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{CustomerRef: order.CustomerRef, Role: input.ActorRole.String()},
			Data: payloads.RefundRequestedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerRef: order.CustomerRef,
				Reason:      input.Reason,
				Comment:     comment,
				RequestedAt: now,
			},
		})
	})
}

// Decide settles a requested refund. The admin comment is mandatory in both
// directions; the customer always learns why.
func (s *service) Decide(ctx context.Context, input DecideInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(input.AdminComment) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "admin comment required")
	}
	if !input.ActorRole.IsStaff() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}

	target := enums.RefundStatusRejected
	if input.Approve {
		target = enums.RefundStatusApproved
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
		if order.RefundStatus == target {
			return nil
		}
		if order.RefundStatus != enums.RefundStatusRequested {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no refund awaiting adjudication")
		}

		moved, err := repo.TransitionRefundStatus(ctx, input.OrderID,
			enums.RefundStatusRequested, target,
			map[string]any{"admin_refund_comment": input.AdminComment})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decide refund")
		}
		if !moved {
			current, rerr := repo.FindOrder(ctx, input.OrderID)
			if rerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, rerr, "reload order")
			}
			if current.RefundStatus == target {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no refund awaiting adjudication")
		}

		if err := recordTransition(ctx, repo, input.OrderID, input.ActorRef, input.ActorRole, "refund_status",
			enums.RefundStatusRequested.String(), target.String()); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundDecided,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{CustomerRef: input.ActorRef, Role: input.ActorRole.String()},
			Data: payloads.RefundDecidedEvent{
				OrderID:      order.ID,
				OrderNumber:  order.OrderNumber,
				CustomerRef:  order.CustomerRef,
				RefundStatus: target,
				AdminComment: input.AdminComment,
			},
		})
	})
}

// MarkProcessed closes an approved refund once the payout has gone out.
func (s *service) MarkProcessed(ctx context.Context, input MarkProcessedInput) error {
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
		if order.RefundStatus == enums.RefundStatusProcessed {
			return nil
		}
		if order.RefundStatus != enums.RefundStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund must be approved before processing")
		}

		now := time.Now().UTC()
		moved, err := repo.TransitionRefundStatus(ctx, input.OrderID,
			enums.RefundStatusApproved, enums.RefundStatusProcessed, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "process refund")
		}
		if !moved {
			current, rerr := repo.FindOrder(ctx, input.OrderID)
			if rerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, rerr, "reload order")
			}
			if current.RefundStatus == enums.RefundStatusProcessed {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund must be approved before processing")
		}

		if err := recordTransition(ctx, repo, input.OrderID, input.ActorRef, input.ActorRole, "refund_status",
			enums.RefundStatusApproved.String(), enums.RefundStatusProcessed.String()); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundProcessed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{CustomerRef: input.ActorRef, Role: input.ActorRole.String()},
			Data: payloads.RefundProcessedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerRef: order.CustomerRef,
				AmountCents: order.TotalCents,
				ProcessedAt: now,
			},
		})
	})
}

func (s *service) ListRequested(ctx context.Context, params pagination.Params) (*orders.OrderList, error) {
	list, err := s.repo.ListByRefundStatus(ctx, enums.RefundStatusRequested, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refund requests")
	}
	return list, nil
}

func recordTransition(ctx context.Context, repo orders.Repository, orderID uuid.UUID, actorRef string, role enums.ActorRole, field, from, to string) error {
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
