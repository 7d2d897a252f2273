package payments

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

type inventoryReleaser interface {
	ReleaseOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

// UploadReceiptInput carries the customer's payment proof.
type UploadReceiptInput struct {
	OrderID     uuid.UUID
	CustomerRef string
	ReceiptRef  string
	ActorRole   enums.ActorRole
}

// DecideInput carries the staff verdict on an uploaded receipt.
type DecideInput struct {
	OrderID      uuid.UUID
	Approve      bool
	StaffComment *string
	ActorRef     string
	ActorRole    enums.ActorRole
}

// Service owns the receipt verification workflow.
type Service interface {
	UploadReceipt(ctx context.Context, input UploadReceiptInput) error
	Decide(ctx context.Context, input DecideInput) error
	ListPendingVerification(ctx context.Context, params pagination.Params) (*orders.OrderList, error)
}

type service struct {
	repo      orders.Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory inventoryReleaser
}

// NewService builds a payments service with the required collaborators.
func NewService(repo orders.Repository, tx txRunner, publisher outboxPublisher, inventory inventoryReleaser) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory releaser required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher, inventory: inventory}, nil
}

// UploadReceipt moves the payment to pending_verification and stores the
// receipt reference. Re-uploading while still pending_verification replaces
// the reference without emitting another event.
func (s *service) UploadReceipt(ctx context.Context, input UploadReceiptInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	input.ReceiptRef = strings.TrimSpace(input.ReceiptRef)
	if input.ReceiptRef == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "receipt reference required")
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
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot upload receipt for cancelled order")
		}

		if order.PaymentStatus == enums.PaymentStatusPendingVerification {
			// Replacement of the pending receipt, no state move.
			if err := repo.UpdateOrder(ctx, input.OrderID, map[string]any{"payment_receipt_ref": input.ReceiptRef}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace receipt")
			}
			return nil
		}
		if order.PaymentStatus != enums.PaymentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already decided")
		}

		moved, err := repo.TransitionPaymentStatus(ctx, input.OrderID,
			enums.PaymentStatusPending, enums.PaymentStatusPendingVerification,
			map[string]any{"payment_receipt_ref": input.ReceiptRef})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload receipt")
		}
		if !moved {
			current, rerr := repo.FindOrder(ctx, input.OrderID)
			if rerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, rerr, "reload order")
			}
			if current.PaymentStatus == enums.PaymentStatusPendingVerification {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already decided")
		}

		if err := recordTransition(ctx, repo, input.OrderID, order.CustomerRef, input.ActorRole, "payment_status",
			enums.PaymentStatusPending.String(), enums.PaymentStatusPendingVerification.String()); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentPendingVerification,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{CustomerRef: order.CustomerRef, Role: input.ActorRole.String()},
			Data: payloads.PaymentPendingVerificationEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				CustomerRef: order.CustomerRef,
				ReceiptRef:  input.ReceiptRef,
			},
		})
	})
}

// Decide settles a pending_verification payment. Approval marks the order
// paid and moves a pending order into processing. Rejection fails the
// payment, cancels the order, and returns its reserved stock. Deciding an
// order already in the requested terminal state is a no-op.
func (s *service) Decide(ctx context.Context, input DecideInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.ActorRole.IsStaff() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "staff role required")
	}

	target := enums.PaymentStatusFailed
	if input.Approve {
		target = enums.PaymentStatusPaid
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
		if order.PaymentStatus == target {
			return nil
		}
		if order.PaymentStatus != enums.PaymentStatusPendingVerification {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no receipt awaiting verification")
		}

		extra := map[string]any{}
		if input.StaffComment != nil {
			extra["staff_comment"] = *input.StaffComment
		}
		moved, err := repo.TransitionPaymentStatus(ctx, input.OrderID,
			enums.PaymentStatusPendingVerification, target, extra)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decide payment")
		}
		if !moved {
			current, rerr := repo.FindOrder(ctx, input.OrderID)
			if rerr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, rerr, "reload order")
			}
			if current.PaymentStatus == target {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no receipt awaiting verification")
		}

		if err := recordTransition(ctx, repo, input.OrderID, input.ActorRef, input.ActorRole, "payment_status",
			enums.PaymentStatusPendingVerification.String(), target.String()); err != nil {
			return err
		}

		if input.Approve {
			if order.Status == enums.OrderStatusPending {
				if _, err := repo.TransitionStatus(ctx, input.OrderID,
					enums.OrderStatusPending, enums.OrderStatusProcessing, nil); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start processing")
				}
				if err := recordTransition(ctx, repo, input.OrderID, input.ActorRef, input.ActorRole, "status",
					enums.OrderStatusPending.String(), enums.OrderStatusProcessing.String()); err != nil {
					return err
				}
			}
		} else {
			// Failed payment cancels the order and compensates its reservation.
			if order.Status == enums.OrderStatusPending || order.Status == enums.OrderStatusProcessing {
				now := time.Now().UTC()
				moved, cerr := repo.TransitionStatus(ctx, input.OrderID, order.Status, enums.OrderStatusCancelled, map[string]any{
					"cancelled_at":  now,
					"cancel_reason": "payment rejected",
				})
				if cerr != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, cerr, "cancel order")
				}
				if moved {
					if err := s.inventory.ReleaseOrder(ctx, tx, input.OrderID); err != nil {
						return err
					}
					if err := recordTransition(ctx, repo, input.OrderID, input.ActorRef, input.ActorRole, "status",
						order.Status.String(), enums.OrderStatusCancelled.String()); err != nil {
						return err
					}
				}
			}
		}

		comment := ""
		if input.StaffComment != nil {
			comment = *input.StaffComment
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentDecided,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{CustomerRef: input.ActorRef, Role: input.ActorRole.String()},
			Data: payloads.PaymentDecidedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				CustomerRef:   order.CustomerRef,
				PaymentStatus: target,
				StaffComment:  comment,
			},
		})
	})
}

func (s *service) ListPendingVerification(ctx context.Context, params pagination.Params) (*orders.OrderList, error) {
	list, err := s.repo.ListByPaymentStatus(ctx, enums.PaymentStatusPendingVerification, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending verification")
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
