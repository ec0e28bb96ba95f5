package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/order"
	"github.com/marketplace/backend/internal/domain/shared"
)

// CartService manages buyer carts. Cart rows carry no price; prices are
// resolved at checkout from the variant's effective price.
type CartService struct {
	cartRepo    order.CartRepository
	variantRepo catalog.VariantRepository
}

// NewCartService creates a new CartService
func NewCartService(cartRepo order.CartRepository, variantRepo catalog.VariantRepository) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		variantRepo: variantRepo,
	}
}

// AddToCart puts a variant in the cart or bumps its quantity. The variant
// must exist and currently cover the requested quantity; the hard guarantee
// still happens at checkout under a row lock.
func (s *CartService) AddToCart(ctx context.Context, req AddToCartRequest) (*CartItemResponse, error) {
	variant, err := s.variantRepo.FindByID(ctx, req.VariantID)
	if err != nil {
		return nil, err
	}

	rows, err := s.cartRepo.FindByBuyer(ctx, req.BuyerID)
	if err != nil {
		return nil, err
	}
	var row *order.CartItem
	for idx := range rows {
		if rows[idx].VariantID == req.VariantID {
			row = &rows[idx]
			break
		}
	}

	quantity := req.Quantity
	if row != nil {
		quantity += row.Quantity
	}
	if !variant.CanFulfill(quantity) {
		return nil, shared.ErrInsufficientStock
	}

	if row == nil {
		row = &order.CartItem{
			BaseEntity: shared.NewBaseEntity(),
			BuyerID:    req.BuyerID,
			VariantID:  req.VariantID,
			Quantity:   quantity,
		}
	} else {
		row.Quantity = quantity
		row.Touch()
	}
	if err := s.cartRepo.Save(ctx, row); err != nil {
		return nil, err
	}
	return &CartItemResponse{ID: row.ID, VariantID: row.VariantID, Quantity: row.Quantity}, nil
}

// GetCart returns the buyer's cart rows
func (s *CartService) GetCart(ctx context.Context, buyerID uuid.UUID) ([]CartItemResponse, error) {
	rows, err := s.cartRepo.FindByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	responses := make([]CartItemResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, CartItemResponse{ID: row.ID, VariantID: row.VariantID, Quantity: row.Quantity})
	}
	return responses, nil
}

// ClearCart empties the buyer's cart
func (s *CartService) ClearCart(ctx context.Context, buyerID uuid.UUID) error {
	return s.cartRepo.ClearForBuyer(ctx, buyerID)
}
