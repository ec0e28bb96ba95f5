package persistence

import (
	"context"

	"gorm.io/gorm"

	appstock "github.com/marketplace/backend/internal/application/stock"
	"github.com/marketplace/backend/internal/domain/catalog"
)

// GormStockTransactionScope implements the stock TransactionScope using
// GORM transactions. Ledger mutation and index recompute commit atomically.
type GormStockTransactionScope struct {
	db *gorm.DB
}

// NewGormStockTransactionScope creates a new GormStockTransactionScope.
func NewGormStockTransactionScope(db *gorm.DB) *GormStockTransactionScope {
	return &GormStockTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormStockTransactionScope) Execute(ctx context.Context, fn func(repos appstock.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormStockRepositories{tx: tx}
		return fn(repos)
	})
}

// gormStockRepositories provides access to the ledger repositories within a transaction.
type gormStockRepositories struct {
	tx *gorm.DB
}

// VariantRepo returns the variant repository scoped to the current transaction.
func (r *gormStockRepositories) VariantRepo() catalog.VariantRepository {
	return NewGormVariantRepository(r.tx)
}

// ProductIndexRepo returns the product index repository scoped to the current transaction.
func (r *gormStockRepositories) ProductIndexRepo() catalog.ProductIndexRepository {
	return NewGormProductIndexRepository(r.tx)
}

// Ensure GormStockTransactionScope implements TransactionScope
var _ appstock.TransactionScope = (*GormStockTransactionScope)(nil)

// Ensure gormStockRepositories implements TransactionalRepositories
var _ appstock.TransactionalRepositories = (*gormStockRepositories)(nil)
