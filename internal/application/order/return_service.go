package order

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/application/stock"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// ReturnService runs the post-delivery return flow. Item state always moves
// together with the return request; physical stock comes back only when the
// goods do, on the completing transition.
type ReturnService struct {
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewReturnService creates a new ReturnService
func NewReturnService(txScope TransactionScope, logger *zap.Logger) *ReturnService {
	return &ReturnService{
		txScope: txScope,
		logger:  logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ReturnService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// RequestReturn opens a return dispute on a delivered item. One open
// request per item; a rejected request may be followed by a new one.
func (s *ReturnService) RequestReturn(ctx context.Context, itemID uuid.UUID, req ReturnRequestCreate) (*ReturnRequestResponse, error) {
	var r *order.ReturnRequest
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.OrderRepo().FindItemByID(ctx, itemID)
		if err != nil {
			return err
		}

		if existing, err := repos.ReturnRepo().FindByOrderItem(ctx, itemID); err == nil && existing != nil && !existing.IsTerminal() {
			return shared.NewDomainError("RETURN_OPEN", "Item already has an open return request")
		}

		r, err = order.NewReturnRequest(item, req.BuyerID, req.Reason)
		if err != nil {
			return err
		}
		if err := repos.OrderRepo().SaveItem(ctx, item); err != nil {
			return err
		}
		return repos.ReturnRepo().Save(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, r)
	s.logger.Info("Return requested",
		zap.String("return_id", r.ID.String()),
		zap.String("order_item_id", itemID.String()),
	)
	response := ToReturnRequestResponse(r)
	return &response, nil
}

// ApproveReturn accepts the dispute. Stock stays untouched until the goods
// arrive back.
func (s *ReturnService) ApproveReturn(ctx context.Context, requestID uuid.UUID) (*ReturnRequestResponse, error) {
	return s.process(ctx, requestID, func(r *order.ReturnRequest, item *order.OrderItem) error {
		return r.Approve(item)
	}, nil)
}

// RejectReturn clears the dispute and restores the item to its active state
func (s *ReturnService) RejectReturn(ctx context.Context, requestID uuid.UUID) (*ReturnRequestResponse, error) {
	return s.process(ctx, requestID, func(r *order.ReturnRequest, item *order.OrderItem) error {
		return r.Reject(item)
	}, nil)
}

// CompleteReturn records the goods' arrival and restocks the variant in the
// same transaction.
func (s *ReturnService) CompleteReturn(ctx context.Context, requestID uuid.UUID) (*ReturnRequestResponse, error) {
	return s.process(ctx, requestID,
		func(r *order.ReturnRequest, item *order.OrderItem) error {
			return r.Complete(item)
		},
		func(ctx context.Context, repos TransactionalRepositories, item *order.OrderItem) error {
			variant, err := repos.VariantRepo().FindByIDForUpdate(ctx, item.VariantID)
			if err != nil {
				return err
			}
			if err := variant.Restock(item.Quantity); err != nil {
				return err
			}
			if err := repos.VariantRepo().Save(ctx, variant); err != nil {
				return err
			}
			return stock.RecomputeProductIndex(ctx, repos, variant.Product)
		},
	)
}

// GetReturn retrieves a return request by ID
func (s *ReturnService) GetReturn(ctx context.Context, requestID uuid.UUID) (*ReturnRequestResponse, error) {
	var r *order.ReturnRequest
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		r, err = repos.ReturnRepo().FindByID(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	response := ToReturnRequestResponse(r)
	return &response, nil
}

// MarkItemReviewed records a buyer review on a line; reviewing a delivered
// line also finalizes it.
func (s *ReturnService) MarkItemReviewed(ctx context.Context, itemID uuid.UUID) (*OrderItemResponse, error) {
	var item *order.OrderItem
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		item, err = repos.OrderRepo().FindItemByID(ctx, itemID)
		if err != nil {
			return err
		}
		if err := item.MarkReviewed(); err != nil {
			return err
		}
		return repos.OrderRepo().SaveItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	response := ToOrderItemResponse(item)
	return &response, nil
}

// process applies one return transition plus an optional in-transaction
// side effect, then persists both the request and its item.
func (s *ReturnService) process(
	ctx context.Context,
	requestID uuid.UUID,
	transition func(*order.ReturnRequest, *order.OrderItem) error,
	sideEffect func(context.Context, TransactionalRepositories, *order.OrderItem) error,
) (*ReturnRequestResponse, error) {
	var r *order.ReturnRequest
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		r, err = repos.ReturnRepo().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		item, err := repos.OrderRepo().FindItemByID(ctx, r.OrderItemID)
		if err != nil {
			return err
		}
		if err := transition(r, item); err != nil {
			return err
		}
		if sideEffect != nil {
			if err := sideEffect(ctx, repos, item); err != nil {
				return err
			}
		}
		if err := repos.OrderRepo().SaveItem(ctx, item); err != nil {
			return err
		}
		return repos.ReturnRepo().Save(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, r)
	s.logger.Info("Return transition applied",
		zap.String("return_id", r.ID.String()),
		zap.String("status", r.Status.String()),
	)
	response := ToReturnRequestResponse(r)
	return &response, nil
}

// publish flushes the request's pending domain events
func (s *ReturnService) publish(ctx context.Context, r *order.ReturnRequest) {
	if s.eventPublisher == nil {
		return
	}
	events := r.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	r.ClearDomainEvents()
}
