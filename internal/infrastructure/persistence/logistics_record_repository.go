package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/shared"
)

// GormLogisticsRecordRepository implements LogisticsRecordRepository using GORM
type GormLogisticsRecordRepository struct {
	db *gorm.DB
}

// NewGormLogisticsRecordRepository creates a new GormLogisticsRecordRepository
func NewGormLogisticsRecordRepository(db *gorm.DB) *GormLogisticsRecordRepository {
	return &GormLogisticsRecordRepository{db: db}
}

// FindByProduct finds the logistics record of a product
func (r *GormLogisticsRecordRepository) FindByProduct(ctx context.Context, product catalog.ProductRef) (*logistics.LogisticsRecord, error) {
	var record logistics.LogisticsRecord
	if err := r.db.WithContext(ctx).
		Where("product_kind = ? AND product_id = ?", product.Kind, product.ID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindByProducts loads records for a batch of products keyed by product ID.
// Missing products are simply absent from the map.
func (r *GormLogisticsRecordRepository) FindByProducts(ctx context.Context, products []catalog.ProductRef) (map[uuid.UUID]*logistics.LogisticsRecord, error) {
	result := make(map[uuid.UUID]*logistics.LogisticsRecord, len(products))
	if len(products) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	var records []logistics.LogisticsRecord
	if err := r.db.WithContext(ctx).
		Where("product_id IN ?", ids).
		Find(&records).Error; err != nil {
		return nil, err
	}

	for i := range records {
		result[records[i].Product.ID] = &records[i]
	}
	return result, nil
}

// Save creates or updates a logistics record
func (r *GormLogisticsRecordRepository) Save(ctx context.Context, record *logistics.LogisticsRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// Ensure GormLogisticsRecordRepository implements LogisticsRecordRepository
var _ logistics.LogisticsRecordRepository = (*GormLogisticsRecordRepository)(nil)
