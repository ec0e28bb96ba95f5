package persistence

import (
	"context"

	"gorm.io/gorm"

	apporder "github.com/marketplace/backend/internal/application/order"
	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
)

// GormOrderTransactionScope implements the order TransactionScope using
// GORM transactions. Checkout, payment and the expiry sweep mutate the
// order, its reservations and its shipments as one atomic unit.
type GormOrderTransactionScope struct {
	db *gorm.DB
}

// NewGormOrderTransactionScope creates a new GormOrderTransactionScope.
func NewGormOrderTransactionScope(db *gorm.DB) *GormOrderTransactionScope {
	return &GormOrderTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormOrderTransactionScope) Execute(ctx context.Context, fn func(repos apporder.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormOrderRepositories{tx: tx}
		return fn(repos)
	})
}

// gormOrderRepositories provides access to the order-side repositories within a transaction.
type gormOrderRepositories struct {
	tx *gorm.DB
}

// OrderRepo returns the order repository scoped to the current transaction.
func (r *gormOrderRepositories) OrderRepo() order.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

// VariantRepo returns the variant repository scoped to the current transaction.
func (r *gormOrderRepositories) VariantRepo() catalog.VariantRepository {
	return NewGormVariantRepository(r.tx)
}

// ProductIndexRepo returns the product index repository scoped to the current transaction.
func (r *gormOrderRepositories) ProductIndexRepo() catalog.ProductIndexRepository {
	return NewGormProductIndexRepository(r.tx)
}

// CartRepo returns the cart repository scoped to the current transaction.
func (r *gormOrderRepositories) CartRepo() order.CartRepository {
	return NewGormCartRepository(r.tx)
}

// ReturnRepo returns the return request repository scoped to the current transaction.
func (r *gormOrderRepositories) ReturnRepo() order.ReturnRequestRepository {
	return NewGormReturnRequestRepository(r.tx)
}

// ShipmentRepo returns the shipment repository scoped to the current transaction.
func (r *gormOrderRepositories) ShipmentRepo() logistics.ShipmentRepository {
	return NewGormShipmentRepository(r.tx)
}

// Ensure GormOrderTransactionScope implements TransactionScope
var _ apporder.TransactionScope = (*GormOrderTransactionScope)(nil)

// Ensure gormOrderRepositories implements TransactionalRepositories
var _ apporder.TransactionalRepositories = (*gormOrderRepositories)(nil)
