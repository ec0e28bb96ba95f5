package logistics

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketplace/backend/internal/domain/catalog"
	"github.com/marketplace/backend/internal/domain/shared"
)

// DefaultItemWeightKg is assumed for items without a logistics record.
// Carriers bill on declared weight, so the fallback errs on the light side.
var DefaultItemWeightKg = decimal.NewFromFloat(0.5)

// weightUnitToKg converts declared weight units to kilograms
var weightUnitToKg = map[string]decimal.Decimal{
	"kg": decimal.NewFromInt(1),
	"g":  decimal.NewFromFloat(0.001),
	"lb": decimal.NewFromFloat(0.45359237),
	"oz": decimal.NewFromFloat(0.028349523125),
}

// WeightKg converts a declared weight in the given unit to kilograms.
// Unknown units fall back to kilograms.
func WeightKg(value decimal.Decimal, unit string) decimal.Decimal {
	factor, ok := weightUnitToKg[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return value
	}
	return value.Mul(factor)
}

// LogisticsRecord carries the seller-declared shipping attributes of a
// product. One record per product; variants share it.
type LogisticsRecord struct {
	shared.BaseEntity
	Product    catalog.ProductRef `gorm:"embedded;embeddedPrefix:product_"`
	Weight     decimal.Decimal    `gorm:"not null"`
	WeightUnit string             `gorm:"type:varchar(10);not null;default:'kg'"`
	LengthCm   decimal.Decimal
	WidthCm    decimal.Decimal
	HeightCm   decimal.Decimal
}

// TableName returns the table name for GORM
func (LogisticsRecord) TableName() string {
	return "logistics_records"
}

// NewLogisticsRecord creates a logistics record for a product
func NewLogisticsRecord(product catalog.ProductRef, weight decimal.Decimal, unit string) (*LogisticsRecord, error) {
	if product.IsZero() {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Logistics record requires a product reference")
	}
	if weight.IsNegative() || weight.IsZero() {
		return nil, shared.NewDomainError("INVALID_WEIGHT", "Declared weight must be positive")
	}
	if unit == "" {
		unit = "kg"
	}
	return &LogisticsRecord{
		BaseEntity: shared.NewBaseEntity(),
		Product:    product,
		Weight:     weight,
		WeightUnit: unit,
	}, nil
}

// WeightKg returns the declared weight normalized to kilograms
func (r *LogisticsRecord) WeightKg() decimal.Decimal {
	return WeightKg(r.Weight, r.WeightUnit)
}

// ItemWeightKg resolves the per-unit weight for a product, falling back to
// the default when no record exists.
func ItemWeightKg(records map[uuid.UUID]*LogisticsRecord, product catalog.ProductRef) decimal.Decimal {
	if r, ok := records[product.ID]; ok && r != nil {
		return r.WeightKg()
	}
	return DefaultItemWeightKg
}
