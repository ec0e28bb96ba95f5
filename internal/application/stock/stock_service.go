package stock

import (
	"context"

	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/shared"
)

// StockService handles the variant stock ledger. Every mutation re-reads the
// variant with a row lock inside a transaction and recomputes the product
// index before committing, so concurrent movements on the same variant
// serialize on the database rather than racing in memory.
type StockService struct {
	variantRepo    catalog.VariantRepository
	txScope        TransactionScope
	eventPublisher shared.EventPublisher
}

// NewStockService creates a new StockService
func NewStockService(variantRepo catalog.VariantRepository, txScope TransactionScope) *StockService {
	return &StockService{
		variantRepo: variantRepo,
		txScope:     txScope,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *StockService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// publishDomainEvents publishes the variant's pending events after commit
func (s *StockService) publishDomainEvents(ctx context.Context, v *catalog.Variant) {
	if s.eventPublisher == nil {
		return
	}
	events := v.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
	v.ClearDomainEvents()
}

// GetVariant retrieves a variant by ID
func (s *StockService) GetVariant(ctx context.Context, id uuid.UUID) (*VariantResponse, error) {
	v, err := s.variantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := ToVariantResponse(v)
	return &response, nil
}

// GetVariantBySKU retrieves a variant by SKU
func (s *StockService) GetVariantBySKU(ctx context.Context, sku string) (*VariantResponse, error) {
	v, err := s.variantRepo.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	response := ToVariantResponse(v)
	return &response, nil
}

// CreateVariant registers a new variant with optional initial stock
func (s *StockService) CreateVariant(ctx context.Context, req CreateVariantRequest) (*VariantResponse, error) {
	ref, err := catalog.NewProductRef(catalog.ProductKind(req.ProductKind), req.ProductID)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", err.Error())
	}

	v, err := catalog.NewVariant(ref, req.ShopID, req.SellerID, req.SKU, req.BasePrice)
	if err != nil {
		return nil, err
	}
	v.ProductName = req.ProductName
	v.Color = req.Color
	v.Size = req.Size
	if req.Quantity > 0 {
		if err := v.AddStock(req.Quantity); err != nil {
			return nil, err
		}
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if existing, err := repos.VariantRepo().FindBySKU(ctx, req.SKU); err == nil && existing != nil {
			return shared.ErrAlreadyExists
		}
		if err := repos.VariantRepo().Save(ctx, v); err != nil {
			return err
		}
		return RecomputeProductIndex(ctx, repos, v.Product)
	})
	if err != nil {
		return nil, err
	}

	s.publishDomainEvents(ctx, v)
	response := ToVariantResponse(v)
	return &response, nil
}

// Reserve places a hold on available stock for a pending order
func (s *StockService) Reserve(ctx context.Context, req StockMoveRequest) (*VariantResponse, error) {
	return s.move(ctx, req.VariantID, func(v *catalog.Variant) error {
		return v.Reserve(req.Quantity)
	})
}

// Commit converts a reservation into a permanent deduction on payment success
func (s *StockService) Commit(ctx context.Context, req StockMoveRequest) (*VariantResponse, error) {
	return s.move(ctx, req.VariantID, func(v *catalog.Variant) error {
		return v.Commit(req.Quantity)
	})
}

// Release returns a reservation to the available pool
func (s *StockService) Release(ctx context.Context, req StockMoveRequest) (*VariantResponse, error) {
	return s.move(ctx, req.VariantID, func(v *catalog.Variant) error {
		return v.Release(req.Quantity)
	})
}

// Restock returns units to owned stock after a completed return
func (s *StockService) Restock(ctx context.Context, req StockMoveRequest) (*VariantResponse, error) {
	return s.move(ctx, req.VariantID, func(v *catalog.Variant) error {
		return v.Restock(req.Quantity)
	})
}

// AddStock increases owned stock (seller replenishing the shop)
func (s *StockService) AddStock(ctx context.Context, req StockMoveRequest) (*VariantResponse, error) {
	return s.move(ctx, req.VariantID, func(v *catalog.Variant) error {
		return v.AddStock(req.Quantity)
	})
}

// SetPriceOverride sets or clears the variant price override
func (s *StockService) SetPriceOverride(ctx context.Context, variantID uuid.UUID, req PriceOverrideRequest) (*VariantResponse, error) {
	v, err := s.variantRepo.FindByID(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if err := v.SetPriceOverride(req.Price); err != nil {
		return nil, err
	}
	if err := s.variantRepo.Save(ctx, v); err != nil {
		return nil, err
	}
	response := ToVariantResponse(v)
	return &response, nil
}

// GetProductIndex returns the denormalized total for a product
func (s *StockService) GetProductIndex(ctx context.Context, kind string, productID uuid.UUID) (*ProductIndexResponse, error) {
	ref, err := catalog.NewProductRef(catalog.ProductKind(kind), productID)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", err.Error())
	}

	var index *catalog.ProductIndex
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		index, err = repos.ProductIndexRepo().Find(ctx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ProductIndexResponse{
		ProductKind:   index.Product.Kind.String(),
		ProductID:     index.Product.ID,
		TotalQuantity: index.TotalQuantity,
		UpdatedAt:     index.UpdatedAt,
	}, nil
}

// move runs one ledger mutation under a row lock and keeps the product
// index in step within the same transaction.
func (s *StockService) move(ctx context.Context, variantID uuid.UUID, mutate func(*catalog.Variant) error) (*VariantResponse, error) {
	var variant *catalog.Variant
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		v, err := repos.VariantRepo().FindByIDForUpdate(ctx, variantID)
		if err != nil {
			return err
		}
		if err := mutate(v); err != nil {
			return err
		}
		if err := repos.VariantRepo().Save(ctx, v); err != nil {
			return err
		}
		if err := RecomputeProductIndex(ctx, repos, v.Product); err != nil {
			return err
		}
		variant = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishDomainEvents(ctx, variant)
	response := ToVariantResponse(variant)
	return &response, nil
}

// RecomputeProductIndex rewrites the per-product total from the variants
// inside the caller's transaction. Exported so order-side ledger moves
// (checkout, payment, expiry) reuse the same recompute.
func RecomputeProductIndex(ctx context.Context, repos TransactionalRepositories, product catalog.ProductRef) error {
	total, err := repos.VariantRepo().SumQuantityByProduct(ctx, product)
	if err != nil {
		return err
	}
	return repos.ProductIndexRepo().Upsert(ctx, &catalog.ProductIndex{
		Product:       product,
		TotalQuantity: total,
	})
}
