package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/shared"
)

// GormShipmentRepository implements ShipmentRepository using GORM
type GormShipmentRepository struct {
	db *gorm.DB
}

// NewGormShipmentRepository creates a new GormShipmentRepository
func NewGormShipmentRepository(db *gorm.DB) *GormShipmentRepository {
	return &GormShipmentRepository{db: db}
}

// FindByID finds a shipment by its ID
func (r *GormShipmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*logistics.Shipment, error) {
	var shipment logistics.Shipment
	if err := r.db.WithContext(ctx).First(&shipment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &shipment, nil
}

// FindByWaybill finds a shipment by its carrier waybill number
func (r *GormShipmentRepository) FindByWaybill(ctx context.Context, waybill string) (*logistics.Shipment, error) {
	var shipment logistics.Shipment
	if err := r.db.WithContext(ctx).
		Where("waybill = ?", waybill).
		First(&shipment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &shipment, nil
}

// FindByOrder finds all shipments of an order
func (r *GormShipmentRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*logistics.Shipment, error) {
	var shipments []*logistics.Shipment
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}

// FindDeliveredBefore returns shipments delivered at or before the cutoff
// that have not yet been auto-completed, oldest delivery first.
func (r *GormShipmentRepository) FindDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*logistics.Shipment, error) {
	var shipments []*logistics.Shipment
	query := r.db.WithContext(ctx).
		Where("status = ? AND auto_completion = ? AND delivered_at <= ?",
			logistics.ShipmentStatusDelivered, false, cutoff).
		Order("delivered_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}

// FindDeliveredPendingReminders returns delivered, not yet auto-completed
// shipments with at least one reminder flag unset.
func (r *GormShipmentRepository) FindDeliveredPendingReminders(ctx context.Context, limit int) ([]*logistics.Shipment, error) {
	var shipments []*logistics.Shipment
	query := r.db.WithContext(ctx).
		Where("status = ? AND auto_completion = ?", logistics.ShipmentStatusDelivered, false).
		Where("reminder_2h_sent = ? OR reminder_24h_sent = ? OR reminder_48h_sent = ?", false, false, false).
		Order("delivered_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}

// Save creates or updates a shipment
func (r *GormShipmentRepository) Save(ctx context.Context, shipment *logistics.Shipment) error {
	return r.db.WithContext(ctx).Save(shipment).Error
}

// DeleteByOrder removes the shipments of an order
func (r *GormShipmentRepository) DeleteByOrder(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&logistics.Shipment{}).Error
}

// DeleteByOrders removes the shipments of a batch of orders in one write
func (r *GormShipmentRepository) DeleteByOrders(ctx context.Context, orderIDs []uuid.UUID) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Delete(&logistics.Shipment{}).Error
}

// Ensure GormShipmentRepository implements ShipmentRepository
var _ logistics.ShipmentRepository = (*GormShipmentRepository)(nil)
