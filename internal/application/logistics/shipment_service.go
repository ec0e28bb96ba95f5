package logistics

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/logistics"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// ShipmentSubmission is what the carrier needs to issue a waybill
type ShipmentSubmission struct {
	ShipmentID      uuid.UUID
	Reference       string // order number, echoed on the carrier side
	Provider        string
	ReceiverAddress string
	WeightKg        decimal.Decimal
	ItemCount       int
}

// CarrierClient talks to the logistics provider. The HTTP-backed
// implementation lives in infrastructure/carrier.
type CarrierClient interface {
	// CreateWaybill registers the parcel with the carrier and returns the
	// issued tracking identifier.
	CreateWaybill(ctx context.Context, submission ShipmentSubmission) (string, error)
}

// ShipmentService submits a paid order's shipments to the carrier. Each
// shipment is submitted independently; one seller's carrier failure never
// blocks the other sellers' parcels, and failed submissions are retried on
// the next call.
type ShipmentService struct {
	txScope        TransactionScope
	carrier        CarrierClient
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewShipmentService creates a new ShipmentService
func NewShipmentService(txScope TransactionScope, carrier CarrierClient, logger *zap.Logger) *ShipmentService {
	return &ShipmentService{
		txScope: txScope,
		carrier: carrier,
		logger:  logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ShipmentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// GetShipment retrieves a shipment by ID
func (s *ShipmentService) GetShipment(ctx context.Context, id uuid.UUID) (*ShipmentResponse, error) {
	var sh *logistics.Shipment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		sh, err = repos.ShipmentRepo().FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	response := ToShipmentResponse(sh)
	return &response, nil
}

// ListShipmentsForOrder returns the shipments of one order
func (s *ShipmentService) ListShipmentsForOrder(ctx context.Context, orderID uuid.UUID) ([]ShipmentResponse, error) {
	var shipments []*logistics.Shipment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		shipments, err = repos.ShipmentRepo().FindByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	responses := make([]ShipmentResponse, 0, len(shipments))
	for _, sh := range shipments {
		responses = append(responses, ToShipmentResponse(sh))
	}
	return responses, nil
}

// SubmitShipmentsForOrder pushes every not-yet-submitted shipment of a paid
// order to the carrier. The order moves to SHIPPED only once every shipment
// holds a waybill; partial failures are reported per shipment and retried
// by calling again.
func (s *ShipmentService) SubmitShipmentsForOrder(ctx context.Context, orderID uuid.UUID) (*SubmitShipmentsResult, error) {
	result := &SubmitShipmentsResult{OrderID: orderID}

	var orderNumber string
	var shipments []*logistics.Shipment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.IsPaid() {
			return shared.NewDomainError("ORDER_NOT_PAID", "Only paid orders can be submitted to the carrier")
		}
		orderNumber = o.OrderNumber
		shipments, err = repos.ShipmentRepo().FindByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	allSubmitted := true
	for _, sh := range shipments {
		if sh.Waybill != "" {
			result.Results = append(result.Results, ShipmentSubmitResult{
				ShipmentID: sh.ID,
				SellerID:   sh.SellerID,
				Waybill:    sh.Waybill,
			})
			continue
		}

		waybill, err := s.carrier.CreateWaybill(ctx, ShipmentSubmission{
			ShipmentID:      sh.ID,
			Reference:       orderNumber,
			Provider:        sh.Provider,
			ReceiverAddress: sh.ReceiverAddress,
			WeightKg:        sh.TotalWeightKg,
			ItemCount:       sh.ItemCount,
		})
		if err != nil {
			s.logger.Error("Carrier rejected shipment",
				zap.String("shipment_id", sh.ID.String()),
				zap.String("order_number", orderNumber),
				zap.Error(err),
			)
			result.Results = append(result.Results, ShipmentSubmitResult{
				ShipmentID: sh.ID,
				SellerID:   sh.SellerID,
				Error:      err.Error(),
			})
			allSubmitted = false
			continue
		}

		if err := s.acceptWaybill(ctx, sh.ID, waybill); err != nil {
			result.Results = append(result.Results, ShipmentSubmitResult{
				ShipmentID: sh.ID,
				SellerID:   sh.SellerID,
				Error:      err.Error(),
			})
			allSubmitted = false
			continue
		}
		result.Results = append(result.Results, ShipmentSubmitResult{
			ShipmentID: sh.ID,
			SellerID:   sh.SellerID,
			Waybill:    waybill,
		})
	}

	result.AllSucceeded = allSubmitted && len(shipments) > 0
	if result.AllSucceeded {
		if err := s.markOrderShipped(ctx, orderID); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Carrier submission finished",
		zap.String("order_number", orderNumber),
		zap.Int("shipments", len(shipments)),
		zap.Bool("all_succeeded", result.AllSucceeded),
	)
	return result, nil
}

// acceptWaybill persists a successful carrier submission
func (s *ShipmentService) acceptWaybill(ctx context.Context, shipmentID uuid.UUID, waybill string) error {
	var sh *logistics.Shipment
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		sh, err = repos.ShipmentRepo().FindByID(ctx, shipmentID)
		if err != nil {
			return err
		}
		if err := sh.AttachWaybill(waybill); err != nil {
			return err
		}
		return repos.ShipmentRepo().Save(ctx, sh)
	})
	if err != nil {
		return err
	}
	s.publishShipmentEvents(ctx, sh)
	return nil
}

// markOrderShipped flips the order once every shipment is with the carrier.
// A replayed submission finds the order already SHIPPED and leaves it be.
func (s *ShipmentService) markOrderShipped(ctx context.Context, orderID uuid.UUID) error {
	return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		o, err := repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != order.OrderStatusPaid {
			return nil
		}
		if err := o.MarkShipped(); err != nil {
			return err
		}
		if err := repos.OrderRepo().Save(ctx, o); err != nil {
			return err
		}
		if s.eventPublisher != nil {
			events := o.GetDomainEvents()
			if len(events) > 0 {
				_ = s.eventPublisher.Publish(ctx, events...)
				o.ClearDomainEvents()
			}
		}
		return nil
	})
}

// publishShipmentEvents flushes a shipment's pending domain events
func (s *ShipmentService) publishShipmentEvents(ctx context.Context, sh *logistics.Shipment) {
	if s.eventPublisher == nil {
		return
	}
	events := sh.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	sh.ClearDomainEvents()
}
