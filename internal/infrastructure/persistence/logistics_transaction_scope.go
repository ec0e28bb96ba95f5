package persistence

import (
	"context"

	"gorm.io/gorm"

	applogistics "github.com/marketplace/backend/internal/application/logistics"
	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
)

// GormLogisticsTransactionScope implements the logistics TransactionScope
// using GORM transactions. Webhook reconciliation and the auto-completion
// sweep update a shipment and its order lines atomically.
type GormLogisticsTransactionScope struct {
	db *gorm.DB
}

// NewGormLogisticsTransactionScope creates a new GormLogisticsTransactionScope.
func NewGormLogisticsTransactionScope(db *gorm.DB) *GormLogisticsTransactionScope {
	return &GormLogisticsTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormLogisticsTransactionScope) Execute(ctx context.Context, fn func(repos applogistics.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormLogisticsRepositories{tx: tx}
		return fn(repos)
	})
}

// gormLogisticsRepositories provides access to the logistics repositories within a transaction.
type gormLogisticsRepositories struct {
	tx *gorm.DB
}

// ShipmentRepo returns the shipment repository scoped to the current transaction.
func (r *gormLogisticsRepositories) ShipmentRepo() logistics.ShipmentRepository {
	return NewGormShipmentRepository(r.tx)
}

// OrderRepo returns the order repository scoped to the current transaction.
func (r *gormLogisticsRepositories) OrderRepo() order.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

// Ensure GormLogisticsTransactionScope implements TransactionScope
var _ applogistics.TransactionScope = (*GormLogisticsTransactionScope)(nil)

// Ensure gormLogisticsRepositories implements TransactionalRepositories
var _ applogistics.TransactionalRepositories = (*gormLogisticsRepositories)(nil)
