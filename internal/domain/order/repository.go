package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/shared"
)

// OrderRepository provides access to the order aggregate
type OrderRepository interface {
	// FindByID loads an order with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByOrderNumber loads an order by its public number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)

	// FindByBuyer pages through one buyer's orders, newest first
	FindByBuyer(ctx context.Context, buyerID uuid.UUID, filter shared.Filter) ([]Order, error)

	// FindPendingOlderThan returns pending orders created before the cutoff,
	// the candidate set for the expiry sweep
	FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]Order, error)

	// FindItemByID loads a single order line
	FindItemByID(ctx context.Context, itemID uuid.UUID) (*OrderItem, error)

	// Save creates or updates an order and its items
	Save(ctx context.Context, o *Order) error

	// SaveItem updates a single order line
	SaveItem(ctx context.Context, item *OrderItem) error

	// BulkCompleteItems sets every listed Active line to COMPLETED in one
	// write. Used by the auto-completion sweep to bound write amplification.
	BulkCompleteItems(ctx context.Context, itemIDs []uuid.UUID, at time.Time) (int, error)

	// BulkCancelPending flips every listed order that is still PENDING to
	// CANCELLED in one write and returns how many rows changed. Used by the
	// expiry sweep.
	BulkCancelPending(ctx context.Context, orderIDs []uuid.UUID, reason string, at time.Time) (int, error)
}

// ReturnRequestRepository provides access to return requests
type ReturnRequestRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ReturnRequest, error)
	FindByOrderItem(ctx context.Context, orderItemID uuid.UUID) (*ReturnRequest, error)
	FindByStatus(ctx context.Context, status ReturnStatus, filter shared.Filter) ([]ReturnRequest, error)
	Save(ctx context.Context, r *ReturnRequest) error
}

// CartRepository provides access to buyer cart rows
type CartRepository interface {
	FindByBuyer(ctx context.Context, buyerID uuid.UUID) ([]CartItem, error)
	Save(ctx context.Context, item *CartItem) error
	// ClearForBuyer deletes every cart row of the buyer; it runs inside the
	// checkout transaction so a failed checkout keeps the cart intact.
	ClearForBuyer(ctx context.Context, buyerID uuid.UUID) error
}
