package catalog

import (
	"context"

	"github.com/google/uuid"
)

// VariantRepository provides access to the variant stock ledger
type VariantRepository interface {
	// FindByID loads a variant without a row lock
	FindByID(ctx context.Context, id uuid.UUID) (*Variant, error)

	// FindByIDForUpdate re-reads the variant row inside the current
	// transaction with a row-level lock, so concurrent reservations of the
	// same variant serialize on the database.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Variant, error)

	// FindBySKU loads a variant by its SKU
	FindBySKU(ctx context.Context, sku string) (*Variant, error)

	// FindByProduct loads all variants of one product
	FindByProduct(ctx context.Context, product ProductRef) ([]Variant, error)

	// Save creates or updates a variant
	Save(ctx context.Context, variant *Variant) error

	// SumQuantityByProduct returns stock+reserved summed across the
	// product's variants, for the denormalized product index
	SumQuantityByProduct(ctx context.Context, product ProductRef) (int, error)
}

// ProductIndexRepository maintains the denormalized per-product totals
type ProductIndexRepository interface {
	// Upsert writes the recomputed total for a product
	Upsert(ctx context.Context, index *ProductIndex) error

	// Find returns the current index row for a product
	Find(ctx context.Context, product ProductRef) (*ProductIndex, error)
}
