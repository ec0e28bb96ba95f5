package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketplace/backend/internal/domain/order"
)

// GormCartRepository implements CartRepository using GORM
type GormCartRepository struct {
	db *gorm.DB
}

// NewGormCartRepository creates a new GormCartRepository
func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// FindByBuyer loads every cart row of a buyer, oldest first
func (r *GormCartRepository) FindByBuyer(ctx context.Context, buyerID uuid.UUID) ([]order.CartItem, error) {
	var items []order.CartItem
	if err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Save creates or updates a cart row
func (r *GormCartRepository) Save(ctx context.Context, item *order.CartItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// ClearForBuyer deletes every cart row of the buyer
func (r *GormCartRepository) ClearForBuyer(ctx context.Context, buyerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Delete(&order.CartItem{}).Error
}

// Ensure GormCartRepository implements CartRepository
var _ order.CartRepository = (*GormCartRepository)(nil)
