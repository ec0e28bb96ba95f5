package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/shared"
)

// ReturnStatus is the status of a post-delivery return request
type ReturnStatus string

const (
	ReturnStatusRequested ReturnStatus = "REQUESTED"
	ReturnStatusApproved  ReturnStatus = "APPROVED"
	ReturnStatusRejected  ReturnStatus = "REJECTED"
	ReturnStatusCompleted ReturnStatus = "COMPLETED"
)

// String returns the string representation of ReturnStatus
func (s ReturnStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the return status can move to the target status
func (s ReturnStatus) CanTransitionTo(target ReturnStatus) bool {
	switch s {
	case ReturnStatusRequested:
		return target == ReturnStatusApproved || target == ReturnStatusRejected
	case ReturnStatusApproved:
		return target == ReturnStatusCompleted
	case ReturnStatusRejected, ReturnStatusCompleted:
		return false // Terminal states
	}
	return false
}

// itemStateFor is the fixed mapping from return status onto the item
// lifecycle. Only REQUESTED, REJECTED and COMPLETED move the item;
// approval changes nothing on the line until the goods come back.
func itemStateFor(s ReturnStatus) (ItemState, bool) {
	switch s {
	case ReturnStatusRequested, ReturnStatusApproved:
		return ItemStateReturnRequested, true
	case ReturnStatusRejected:
		return ItemStateActive, true
	case ReturnStatusCompleted:
		return ItemStateReturned, true
	}
	return "", false
}

// ReturnRequest is a buyer-initiated dispute on a delivered item. Physical
// stock restoration happens only on the APPROVED -> COMPLETED transition.
type ReturnRequest struct {
	shared.BaseAggregateRoot
	OrderID     uuid.UUID    `gorm:"type:uuid;not null;index"`
	// uniqueness is a partial index in the migration: one OPEN request per
	// item, rejected requests stay on file
	OrderItemID uuid.UUID    `gorm:"type:uuid;not null;index"`
	BuyerID     uuid.UUID    `gorm:"type:uuid;not null;index"`
	Status      ReturnStatus `gorm:"type:varchar(20);not null"`
	Reason      string       `gorm:"type:varchar(500);not null"`
	ProcessedAt *time.Time
}

// TableName returns the table name for GORM
func (ReturnRequest) TableName() string {
	return "return_requests"
}

// NewReturnRequest opens a return dispute for a delivered item
func NewReturnRequest(item *OrderItem, buyerID uuid.UUID, reason string) (*ReturnRequest, error) {
	if reason == "" {
		return nil, shared.NewDomainError("INVALID_REASON", "Return reason is required")
	}
	if item.DeliveredAt == nil {
		return nil, shared.NewDomainError("NOT_DELIVERED", "Only delivered items can be returned")
	}
	if err := item.applyReturnState(ItemStateReturnRequested); err != nil {
		return nil, err
	}

	r := &ReturnRequest{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderID:           item.OrderID,
		OrderItemID:       item.ID,
		BuyerID:           buyerID,
		Status:            ReturnStatusRequested,
		Reason:            reason,
	}
	r.AddDomainEvent(NewReturnRequestedEvent(r, item))
	return r, nil
}

// Approve accepts the dispute; the item stays flagged, stock is untouched
func (r *ReturnRequest) Approve(item *OrderItem) error {
	if err := r.transition(ReturnStatusApproved, item); err != nil {
		return err
	}
	r.AddDomainEvent(NewReturnApprovedEvent(r, item))
	return nil
}

// Reject clears the dispute and restores the item to its active state
func (r *ReturnRequest) Reject(item *OrderItem) error {
	if err := r.transition(ReturnStatusRejected, item); err != nil {
		return err
	}
	r.AddDomainEvent(NewReturnRejectedEvent(r, item))
	return nil
}

// Complete records that the goods arrived back. The caller restocks the
// variant in the same transaction; this is the only transition that does.
func (r *ReturnRequest) Complete(item *OrderItem) error {
	if err := r.transition(ReturnStatusCompleted, item); err != nil {
		return err
	}
	r.AddDomainEvent(NewReturnCompletedEvent(r, item))
	return nil
}

// transition applies the status change and mirrors it onto the item
func (r *ReturnRequest) transition(target ReturnStatus, item *OrderItem) error {
	if item == nil || item.ID != r.OrderItemID {
		return shared.NewDomainError("ITEM_MISMATCH", "Return request does not belong to this item")
	}
	if !r.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Return cannot move from %s to %s", r.Status, target))
	}

	itemState, ok := itemStateFor(target)
	if !ok {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("No item mapping for return status %s", target))
	}
	if err := item.applyReturnState(itemState); err != nil {
		return err
	}

	now := time.Now()
	r.Status = target
	r.ProcessedAt = &now
	r.Touch()
	r.IncrementVersion()
	return nil
}

// IsTerminal reports whether the request reached a terminal status
func (r *ReturnRequest) IsTerminal() bool {
	return r.Status == ReturnStatusRejected || r.Status == ReturnStatusCompleted
}
