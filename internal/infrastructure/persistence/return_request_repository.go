package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// GormReturnRequestRepository implements ReturnRequestRepository using GORM
type GormReturnRequestRepository struct {
	db *gorm.DB
}

// NewGormReturnRequestRepository creates a new GormReturnRequestRepository
func NewGormReturnRequestRepository(db *gorm.DB) *GormReturnRequestRepository {
	return &GormReturnRequestRepository{db: db}
}

// FindByID finds a return request by its ID
func (r *GormReturnRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.ReturnRequest, error) {
	var request order.ReturnRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

// FindByOrderItem finds the latest return request opened against an order
// line. Rejected requests stay on file, so an item can carry several.
func (r *GormReturnRequestRepository) FindByOrderItem(ctx context.Context, orderItemID uuid.UUID) (*order.ReturnRequest, error) {
	var request order.ReturnRequest
	if err := r.db.WithContext(ctx).
		Where("order_item_id = ?", orderItemID).
		Order("created_at DESC").
		First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

// FindByStatus finds return requests by status
func (r *GormReturnRequestRepository) FindByStatus(ctx context.Context, status order.ReturnStatus, filter shared.Filter) ([]order.ReturnRequest, error) {
	var requests []order.ReturnRequest
	query := r.db.WithContext(ctx).
		Model(&order.ReturnRequest{}).
		Where("status = ?", status)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}
	orderBy := ValidateSortField(filter.OrderBy, ReturnRequestSortFields, "created_at")
	orderDir := "ASC"
	if strings.ToLower(filter.OrderDir) != "asc" {
		orderDir = "DESC"
	}
	query = query.Order(orderBy + " " + orderDir)

	if err := query.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// Save creates or updates a return request
func (r *GormReturnRequestRepository) Save(ctx context.Context, request *order.ReturnRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

// Ensure GormReturnRequestRepository implements ReturnRequestRepository
var _ order.ReturnRequestRepository = (*GormReturnRequestRepository)(nil)
