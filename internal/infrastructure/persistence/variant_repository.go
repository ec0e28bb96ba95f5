package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/shared"
)

// GormVariantRepository implements VariantRepository using GORM
type GormVariantRepository struct {
	db *gorm.DB
}

// NewGormVariantRepository creates a new GormVariantRepository
func NewGormVariantRepository(db *gorm.DB) *GormVariantRepository {
	return &GormVariantRepository{db: db}
}

// FindByID finds a variant by its ID
func (r *GormVariantRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Variant, error) {
	var variant catalog.Variant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &variant, nil
}

// FindByIDForUpdate re-reads the variant row with a row-level lock. Callers
// must already be inside a transaction; concurrent reservations of the same
// variant serialize here.
func (r *GormVariantRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*catalog.Variant, error) {
	var variant catalog.Variant
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&variant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &variant, nil
}

// FindBySKU finds a variant by its SKU
func (r *GormVariantRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Variant, error) {
	var variant catalog.Variant
	if err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		First(&variant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &variant, nil
}

// FindByProduct finds all variants of one product
func (r *GormVariantRepository) FindByProduct(ctx context.Context, product catalog.ProductRef) ([]catalog.Variant, error) {
	var variants []catalog.Variant
	if err := r.db.WithContext(ctx).
		Where("product_kind = ? AND product_id = ?", product.Kind, product.ID).
		Order("sku ASC").
		Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

// Save creates or updates a variant
func (r *GormVariantRepository) Save(ctx context.Context, variant *catalog.Variant) error {
	return r.db.WithContext(ctx).Save(variant).Error
}

// SumQuantityByProduct sums stock plus reserved across the product's
// variants for the denormalized product index.
func (r *GormVariantRepository) SumQuantityByProduct(ctx context.Context, product catalog.ProductRef) (int, error) {
	var total int
	if err := r.db.WithContext(ctx).
		Model(&catalog.Variant{}).
		Select("COALESCE(SUM(stock_quantity + reserved_quantity), 0)").
		Where("product_kind = ? AND product_id = ?", product.Kind, product.ID).
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Ensure GormVariantRepository implements VariantRepository
var _ catalog.VariantRepository = (*GormVariantRepository)(nil)

// GormProductIndexRepository implements ProductIndexRepository using GORM
type GormProductIndexRepository struct {
	db *gorm.DB
}

// NewGormProductIndexRepository creates a new GormProductIndexRepository
func NewGormProductIndexRepository(db *gorm.DB) *GormProductIndexRepository {
	return &GormProductIndexRepository{db: db}
}

// Upsert writes the recomputed total for a product
func (r *GormProductIndexRepository) Upsert(ctx context.Context, index *catalog.ProductIndex) error {
	index.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_kind"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_quantity", "updated_at"}),
		}).
		Create(index).Error
}

// Find returns the current index row for a product
func (r *GormProductIndexRepository) Find(ctx context.Context, product catalog.ProductRef) (*catalog.ProductIndex, error) {
	var index catalog.ProductIndex
	if err := r.db.WithContext(ctx).
		Where("product_kind = ? AND product_id = ?", product.Kind, product.ID).
		First(&index).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &index, nil
}

// Ensure GormProductIndexRepository implements ProductIndexRepository
var _ catalog.ProductIndexRepository = (*GormProductIndexRepository)(nil)
