package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/backend/internal/domain/shared"
)

// Variant is a purchasable SKU: one product plus a color/size combination.
// It is the aggregate root for stock-ledger operations. All stock mutations
// maintain the invariant 0 <= ReservedQuantity <= StockQuantity.
type Variant struct {
	shared.BaseAggregateRoot
	Product          ProductRef `gorm:"embedded;embeddedPrefix:product_"`
	ShopID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	SellerID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	SKU              string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	ProductName      string     `gorm:"type:varchar(200);not null"` // Display name captured at listing time
	Color            string     `gorm:"type:varchar(50)"`
	Size             string     `gorm:"type:varchar(50)"`
	StockQuantity    int        `gorm:"not null;default:0"` // Total units owned
	ReservedQuantity int        `gorm:"not null;default:0"` // Units held against pending orders
	BasePrice        decimal.Decimal
	PriceOverride    *decimal.Decimal
}

// TableName returns the table name for GORM
func (Variant) TableName() string {
	return "variants"
}

// NewVariant creates a new variant for a product
func NewVariant(product ProductRef, shopID, sellerID uuid.UUID, sku string, basePrice decimal.Decimal) (*Variant, error) {
	if product.IsZero() {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product reference cannot be empty")
	}
	if shopID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SHOP", "Shop ID cannot be empty")
	}
	if sellerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SELLER", "Seller ID cannot be empty")
	}
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if basePrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Base price cannot be negative")
	}

	return &Variant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Product:           product,
		ShopID:            shopID,
		SellerID:          sellerID,
		SKU:               sku,
		BasePrice:         basePrice,
	}, nil
}

// Available returns the quantity not held by any reservation
func (v *Variant) Available() int {
	return v.StockQuantity - v.ReservedQuantity
}

// EffectivePrice returns the override price when set, else the base price
func (v *Variant) EffectivePrice() decimal.Decimal {
	if v.PriceOverride != nil {
		return *v.PriceOverride
	}
	return v.BasePrice
}

// SetPriceOverride sets or clears the variant-level price override
func (v *Variant) SetPriceOverride(price *decimal.Decimal) error {
	if price != nil && price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Price override cannot be negative")
	}
	v.PriceOverride = price
	v.Touch()
	v.IncrementVersion()
	return nil
}

// AddStock increases the total owned quantity (seller restocking the shop)
func (v *Variant) AddStock(qty int) error {
	if qty <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	v.StockQuantity += qty
	v.Touch()
	v.IncrementVersion()
	return nil
}

// Reserve places a hold on stock for a pending order.
// Fails when the requested quantity exceeds the available quantity.
func (v *Variant) Reserve(qty int) error {
	if qty <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if qty > v.Available() {
		return shared.NewDomainError("INSUFFICIENT_STOCK",
			fmt.Sprintf("Insufficient stock for variant %s: requested %d, available %d", v.SKU, qty, v.Available()))
	}

	v.ReservedQuantity += qty
	v.Touch()
	v.IncrementVersion()

	v.AddDomainEvent(NewStockReservedEvent(v, qty))
	return nil
}

// Commit converts a reservation into a permanent deduction on payment
// success. Caller guards idempotence per order via the order status check.
func (v *Variant) Commit(qty int) error {
	if qty <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if qty > v.ReservedQuantity {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot commit %d units of %s: only %d reserved", qty, v.SKU, v.ReservedQuantity))
	}

	v.ReservedQuantity -= qty
	v.StockQuantity -= qty
	v.Touch()
	v.IncrementVersion()

	v.AddDomainEvent(NewStockCommittedEvent(v, qty))
	return nil
}

// Release returns a reservation to the available pool on cancellation,
// failure, or expiry. The reserved counter is floored at zero to survive
// upstream data drift; a clamp is reported through a drift event.
func (v *Variant) Release(qty int) error {
	if qty <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}

	released := qty
	clamped := false
	if qty > v.ReservedQuantity {
		released = v.ReservedQuantity
		clamped = true
	}
	v.ReservedQuantity -= released
	v.Touch()
	v.IncrementVersion()

	v.AddDomainEvent(NewStockReleasedEvent(v, released))
	if clamped {
		v.AddDomainEvent(NewReservationDriftEvent(v, qty, released))
	}
	return nil
}

// Restock returns units to owned stock after a completed return
func (v *Variant) Restock(qty int) error {
	if qty <= 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}

	v.StockQuantity += qty
	v.Touch()
	v.IncrementVersion()

	v.AddDomainEvent(NewStockRestockedEvent(v, qty))
	return nil
}

// CanFulfill reports whether available stock covers the requested quantity
func (v *Variant) CanFulfill(qty int) bool {
	return qty > 0 && qty <= v.Available()
}

// checkInvariant reports a broken ledger invariant, used by tests and
// defensive persistence checks.
func (v *Variant) checkInvariant() error {
	if v.ReservedQuantity < 0 || v.ReservedQuantity > v.StockQuantity {
		return shared.NewDomainError("LEDGER_CORRUPT",
			fmt.Sprintf("variant %s: reserved=%d stock=%d", v.SKU, v.ReservedQuantity, v.StockQuantity))
	}
	return nil
}

// Validate verifies the ledger invariant holds
func (v *Variant) Validate() error {
	return v.checkInvariant()
}

// ProductIndex is the denormalized per-product stock total, recomputed from
// all of the product's variants whenever the ledger moves.
type ProductIndex struct {
	Product       ProductRef `gorm:"embedded;embeddedPrefix:product_"`
	TotalQuantity int        `gorm:"not null;default:0"` // stock + reserved across variants
	UpdatedAt     time.Time
}

// TableName returns the table name for GORM
func (ProductIndex) TableName() string {
	return "product_indexes"
}
