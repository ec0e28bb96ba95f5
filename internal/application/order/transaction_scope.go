package order

import (
	"context"

	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
)

// TransactionScope provides transactional access to the order-side
// repositories. Checkout, payment confirmation and the sweeps mutate the
// order, its stock reservations and its shipments as one atomic unit.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories an order
// workflow touches. All repositories share the same underlying database
// transaction. VariantRepo and ProductIndexRepo match the stock package's
// transactional surface, so ledger helpers are shared across both scopes.
type TransactionalRepositories interface {
	// OrderRepo returns the order repository scoped to the current transaction
	OrderRepo() order.OrderRepository
	// VariantRepo returns the variant repository scoped to the current transaction
	VariantRepo() catalog.VariantRepository
	// ProductIndexRepo returns the product index repository scoped to the current transaction
	ProductIndexRepo() catalog.ProductIndexRepository
	// CartRepo returns the cart repository scoped to the current transaction
	CartRepo() order.CartRepository
	// ReturnRepo returns the return request repository scoped to the current transaction
	ReturnRepo() order.ReturnRequestRepository
	// ShipmentRepo returns the shipment repository scoped to the current transaction
	ShipmentRepo() logistics.ShipmentRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. This is useful for testing or when transaction support is
// not required.
type NoOpTransactionScope struct {
	orderRepo    order.OrderRepository
	variantRepo  catalog.VariantRepository
	indexRepo    catalog.ProductIndexRepository
	cartRepo     order.CartRepository
	returnRepo   order.ReturnRequestRepository
	shipmentRepo logistics.ShipmentRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	orderRepo order.OrderRepository,
	variantRepo catalog.VariantRepository,
	indexRepo catalog.ProductIndexRepository,
	cartRepo order.CartRepository,
	returnRepo order.ReturnRequestRepository,
	shipmentRepo logistics.ShipmentRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		orderRepo:    orderRepo,
		variantRepo:  variantRepo,
		indexRepo:    indexRepo,
		cartRepo:     cartRepo,
		returnRepo:   returnRepo,
		shipmentRepo: shipmentRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// OrderRepo returns the order repository.
func (s *NoOpTransactionScope) OrderRepo() order.OrderRepository { return s.orderRepo }

// VariantRepo returns the variant repository.
func (s *NoOpTransactionScope) VariantRepo() catalog.VariantRepository { return s.variantRepo }

// ProductIndexRepo returns the product index repository.
func (s *NoOpTransactionScope) ProductIndexRepo() catalog.ProductIndexRepository {
	return s.indexRepo
}

// CartRepo returns the cart repository.
func (s *NoOpTransactionScope) CartRepo() order.CartRepository { return s.cartRepo }

// ReturnRepo returns the return request repository.
func (s *NoOpTransactionScope) ReturnRepo() order.ReturnRequestRepository { return s.returnRepo }

// ShipmentRepo returns the shipment repository.
func (s *NoOpTransactionScope) ShipmentRepo() logistics.ShipmentRepository { return s.shipmentRepo }

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
