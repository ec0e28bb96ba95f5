package logistics

import (
	"context"

	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
)

// TransactionScope provides transactional access to the carrier-side
// repositories. Webhook application and the auto-completion sweep mutate a
// shipment together with its order, atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories a carrier
// workflow touches. Both share the same underlying database transaction.
type TransactionalRepositories interface {
	// ShipmentRepo returns the shipment repository scoped to the current transaction
	ShipmentRepo() logistics.ShipmentRepository
	// OrderRepo returns the order repository scoped to the current transaction
	OrderRepo() order.OrderRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. This is useful for testing or when transaction support is
// not required.
type NoOpTransactionScope struct {
	shipmentRepo logistics.ShipmentRepository
	orderRepo    order.OrderRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	shipmentRepo logistics.ShipmentRepository,
	orderRepo order.OrderRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		shipmentRepo: shipmentRepo,
		orderRepo:    orderRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ShipmentRepo returns the shipment repository.
func (s *NoOpTransactionScope) ShipmentRepo() logistics.ShipmentRepository {
	return s.shipmentRepo
}

// OrderRepo returns the order repository.
func (s *NoOpTransactionScope) OrderRepo() order.OrderRepository {
	return s.orderRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
