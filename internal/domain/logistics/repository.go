package logistics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/catalog"
)

// ShipmentRepository defines the persistence port for shipments
type ShipmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Shipment, error)
	FindByWaybill(ctx context.Context, waybill string) (*Shipment, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*Shipment, error)
	// FindDeliveredBefore returns shipments delivered at or before the
	// cutoff that have not yet been auto-completed, oldest first.
	FindDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Shipment, error)
	// FindDeliveredPendingReminders returns delivered, not yet
	// auto-completed shipments that still have at least one reminder
	// flag unset.
	FindDeliveredPendingReminders(ctx context.Context, limit int) ([]*Shipment, error)
	Save(ctx context.Context, shipment *Shipment) error
	// DeleteByOrder removes the shipments of an order whose payment fell
	// through before the carrier was ever engaged.
	DeleteByOrder(ctx context.Context, orderID uuid.UUID) error
	// DeleteByOrders removes the shipments of a batch of expired orders in
	// one write.
	DeleteByOrders(ctx context.Context, orderIDs []uuid.UUID) error
}

// LogisticsRecordRepository defines the persistence port for per-product
// shipping attributes.
type LogisticsRecordRepository interface {
	FindByProduct(ctx context.Context, product catalog.ProductRef) (*LogisticsRecord, error)
	// FindByProducts loads records for a batch of products keyed by
	// product ID. Missing products are simply absent from the map.
	FindByProducts(ctx context.Context, products []catalog.ProductRef) (map[uuid.UUID]*LogisticsRecord, error)
	Save(ctx context.Context, record *LogisticsRecord) error
}
