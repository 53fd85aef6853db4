// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	BaseModel
	Name        string `json:"name" gorm:"uniqueIndex;size:100;not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;size:120;not null"`
	Description string `json:"description" gorm:"type:text"`
}

type Product struct {
	BaseModel
	Name        string          `json:"name" gorm:"size:255;not null"`
	Description string          `json:"description" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null;default:0"`
	Stock       int             `json:"stock" gorm:"not null;default:0"`
	CategoryID  *uuid.UUID      `json:"category_id" gorm:"type:uuid;index"`
	Status      ProductStatus   `json:"status" gorm:"type:varchar(20);default:'active';index"`

	// Relationships
	Category *Category      `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Variants []Variant      `json:"variants,omitempty" gorm:"foreignKey:ProductID"`
	Images   []ProductImage `json:"images,omitempty" gorm:"foreignKey:ProductID"`
}

// Variant overrides the product price and stock when selected. A zero price
// inherits the product price.
type Variant struct {
	BaseModel
	ProductID  uuid.UUID       `json:"product_id" gorm:"type:uuid;not null;index"`
	SKU        string          `json:"sku" gorm:"size:64;index"`
	Attributes Attributes      `json:"attributes" gorm:"type:jsonb"`
	Price      decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null;default:0"`
	Stock      int             `json:"stock" gorm:"not null;default:0"`
}

func (v *Variant) EffectivePrice(product *Product) decimal.Decimal {
	if v.Price.IsPositive() {
		return v.Price
	}
	return product.Price
}

// Label renders the attribute map as "color: gold, size: M" in key order.
func (v *Variant) Label() string {
	return v.Attributes.String()
}

type ProductImage struct {
	BaseModel
	ProductID  uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	URL        string    `json:"url" gorm:"size:500;not null"`
	StorageKey string    `json:"storage_key" gorm:"size:255"`
	Position   int       `json:"position" gorm:"default:0"`
}
