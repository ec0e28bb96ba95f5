package catalog

import (
	"fmt"

	"github.com/google/uuid"
)

// ProductKind identifies which concrete product table a reference points to.
// It replaces a reflection-based generic link with a tagged union.
type ProductKind string

const (
	ProductKindFashion     ProductKind = "FASHION"
	ProductKindElectronics ProductKind = "ELECTRONICS"
	ProductKindVehicle     ProductKind = "VEHICLE"
	ProductKindFood        ProductKind = "FOOD"
	ProductKindBeauty      ProductKind = "BEAUTY"
	ProductKindFurniture   ProductKind = "FURNITURE"
	ProductKindBook        ProductKind = "BOOK"
	ProductKindOther       ProductKind = "OTHER"
)

// IsValid checks if the kind is a known ProductKind
func (k ProductKind) IsValid() bool {
	switch k {
	case ProductKindFashion, ProductKindElectronics, ProductKindVehicle,
		ProductKindFood, ProductKindBeauty, ProductKindFurniture,
		ProductKindBook, ProductKindOther:
		return true
	}
	return false
}

// String returns the string representation of ProductKind
func (k ProductKind) String() string {
	return string(k)
}

// ProductRef is a typed reference to one row in one concrete product table
type ProductRef struct {
	Kind ProductKind `gorm:"type:varchar(20);not null"`
	ID   uuid.UUID   `gorm:"type:uuid;not null"`
}

// NewProductRef creates a validated product reference
func NewProductRef(kind ProductKind, id uuid.UUID) (ProductRef, error) {
	if !kind.IsValid() {
		return ProductRef{}, fmt.Errorf("unknown product kind %q", kind)
	}
	if id == uuid.Nil {
		return ProductRef{}, fmt.Errorf("product ID cannot be empty")
	}
	return ProductRef{Kind: kind, ID: id}, nil
}

// IsZero reports whether the reference is unset
func (r ProductRef) IsZero() bool {
	return r.ID == uuid.Nil
}

// String returns a stable textual form, usable as a cache or map key
func (r ProductRef) String() string {
	return string(r.Kind) + ":" + r.ID.String()
}
