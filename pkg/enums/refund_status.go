package enums

import "fmt"

// RefundStatus tracks the adjudication lifecycle of a refund request.
type RefundStatus string

const (
	RefundStatusNone      RefundStatus = "none"
	RefundStatusRequested RefundStatus = "requested"
	RefundStatusApproved  RefundStatus = "approved"
	RefundStatusRejected  RefundStatus = "rejected"
	RefundStatusProcessed RefundStatus = "processed"
)

var validRefundStatuses = []RefundStatus{
	RefundStatusNone,
	RefundStatusRequested,
	RefundStatusApproved,
	RefundStatusRejected,
	RefundStatusProcessed,
}

var refundStatusTransitions = map[RefundStatus][]RefundStatus{
	RefundStatusNone:      {RefundStatusRequested},
	RefundStatusRequested: {RefundStatusApproved, RefundStatusRejected},
	RefundStatusApproved:  {RefundStatusProcessed},
}

// String implements fmt.Stringer.
func (r RefundStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RefundStatus.
func (r RefundStatus) IsValid() bool {
	for _, candidate := range validRefundStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further refund transition is permitted.
func (r RefundStatus) IsTerminal() bool {
	return len(refundStatusTransitions[r]) == 0 && r.IsValid()
}

// CanTransitionTo reports whether the adjacency table allows r -> next.
func (r RefundStatus) CanTransitionTo(next RefundStatus) bool {
	for _, candidate := range refundStatusTransitions[r] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseRefundStatus converts raw input into a RefundStatus.
func ParseRefundStatus(value string) (RefundStatus, error) {
	for _, candidate := range validRefundStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund status %q", value)
}
