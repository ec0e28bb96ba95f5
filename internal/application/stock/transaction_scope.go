package stock

import (
	"context"

	"github.com/marketplace/backend/internal/domain/catalog"
)

// TransactionScope provides transactional access to the stock-ledger
// repositories. When a function is executed within a transaction scope, all
// repository operations are part of the same database transaction and are
// committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories within
// a transaction. All repositories returned share the same underlying database
// transaction, so the variant counter move and the product index recompute
// commit together.
type TransactionalRepositories interface {
	// VariantRepo returns the variant repository scoped to the current transaction
	VariantRepo() catalog.VariantRepository
	// ProductIndexRepo returns the product index repository scoped to the current transaction
	ProductIndexRepo() catalog.ProductIndexRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. This is useful for testing or when transaction support is
// not required.
type NoOpTransactionScope struct {
	variantRepo catalog.VariantRepository
	indexRepo   catalog.ProductIndexRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	variantRepo catalog.VariantRepository,
	indexRepo catalog.ProductIndexRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		variantRepo: variantRepo,
		indexRepo:   indexRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// VariantRepo returns the variant repository.
func (s *NoOpTransactionScope) VariantRepo() catalog.VariantRepository {
	return s.variantRepo
}

// ProductIndexRepo returns the product index repository.
func (s *NoOpTransactionScope) ProductIndexRepo() catalog.ProductIndexRepository {
	return s.indexRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
