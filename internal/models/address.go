// internal/models/address.go
package models

import "github.com/google/uuid"

type Address struct {
	BaseModel
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	FullName   string    `json:"full_name" gorm:"size:120;not null"`
	Phone      string    `json:"phone" gorm:"size:32;not null"`
	Line1      string    `json:"line1" gorm:"size:255;not null"`
	Line2      string    `json:"line2" gorm:"size:255"`
	City       string    `json:"city" gorm:"size:100;not null"`
	State      string    `json:"state" gorm:"size:100"`
	PostalCode string    `json:"postal_code" gorm:"size:20;not null"`
	Country    string    `json:"country" gorm:"size:2;not null"`
	IsDefault  bool      `json:"is_default" gorm:"not null;default:false"`
}

func (a *Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type CartItem struct {
	BaseModel
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID  `json:"product_id" gorm:"type:uuid;not null"`
	VariantID *uuid.UUID `json:"variant_id,omitempty" gorm:"type:uuid"`
	Quantity  int        `json:"quantity" gorm:"not null"`

	// Relationships
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Variant *Variant `json:"variant,omitempty" gorm:"foreignKey:VariantID"`
}
