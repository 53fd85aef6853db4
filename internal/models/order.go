// internal/models/order.go
package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusProcessing      OrderStatus = "PROCESSING"
	OrderStatusShipped         OrderStatus = "SHIPPED"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusReturnRequested OrderStatus = "RETURN_REQUESTED"
	OrderStatusReturned        OrderStatus = "RETURNED"
)

// orderTransitions lists the statuses reachable from each status.
// RETURNED and CANCELLED are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:      {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:         {OrderStatusDelivered},
	OrderStatusDelivered:       {OrderStatusReturnRequested},
	OrderStatusReturnRequested: {OrderStatusReturned, OrderStatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusReturnRequested, OrderStatusReturned:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusReturned
}

func (s OrderStatus) Cancellable() bool {
	return CanTransition(s, OrderStatusCancelled)
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllOrderStatuses returns every status in lifecycle order.
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
		OrderStatusReturnRequested,
		OrderStatusReturned,
	}
}

// ShippingAddress is copied onto the order at checkout and never follows later
// edits of the saved address.
type ShippingAddress struct {
	FullName   string `json:"full_name" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2,omitempty" validate:"max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state,omitempty" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=2"`
}

func (a ShippingAddress) Value() (driver.Value, error) {
	return JSONB{
		"full_name":   a.FullName,
		"phone":       a.Phone,
		"line1":       a.Line1,
		"line2":       a.Line2,
		"city":        a.City,
		"state":       a.State,
		"postal_code": a.PostalCode,
		"country":     a.Country,
	}.Value()
}

func (a *ShippingAddress) Scan(value interface{}) error {
	return scanJSON(value, a)
}

type Order struct {
	BaseModel
	OrderNumber      string          `json:"order_number" gorm:"uniqueIndex;size:32;not null"`
	UserID           uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	Total            decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
	Status           OrderStatus     `json:"status" gorm:"type:varchar(20);not null;index"`
	PaymentMethod    PaymentMethod   `json:"payment_method" gorm:"type:varchar(20);not null"`
	PaymentStatus    PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);not null;index"`
	PaymentReference string          `json:"payment_reference,omitempty" gorm:"size:255"`
	ShippingAddress  ShippingAddress `json:"shipping_address" gorm:"type:jsonb;not null"`
	Notes            string          `json:"notes,omitempty" gorm:"type:text"`
	ShippedAt        *time.Time      `json:"shipped_at"`
	DeliveredAt      *time.Time      `json:"delivered_at"`
	CancelledAt      *time.Time      `json:"cancelled_at"`

	// Relationships
	User     *User           `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Items    []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	Timeline []OrderTimeline `json:"timeline" gorm:"foreignKey:OrderID"`
	Returns  []ReturnRequest `json:"returns,omitempty" gorm:"foreignKey:OrderID"`
}

func (o *Order) OwnedBy(userID uuid.UUID) bool {
	return o.UserID == userID
}

type OrderItem struct {
	BaseModel
	OrderID      uuid.UUID       `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID    uuid.UUID       `json:"product_id" gorm:"type:uuid;not null;index"`
	VariantID    *uuid.UUID      `json:"variant_id,omitempty" gorm:"type:uuid"`
	ProductName  string          `json:"product_name" gorm:"size:255;not null"`
	VariantLabel string          `json:"variant_label,omitempty" gorm:"size:255"`
	Quantity     int             `json:"quantity" gorm:"not null;check:chk_order_items_quantity,quantity > 0"`
	UnitPrice    decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	Subtotal     decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
}

type OrderTimeline struct {
	BaseModel
	OrderID uuid.UUID   `json:"order_id" gorm:"type:uuid;not null;index"`
	Status  OrderStatus `json:"status" gorm:"type:varchar(20);not null"`
	Note    string      `json:"note" gorm:"type:text"`
	ActorID *uuid.UUID  `json:"actor_id,omitempty" gorm:"type:uuid"`
}

type ReturnRequest struct {
	BaseModel
	OrderID     uuid.UUID    `json:"order_id" gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID    `json:"user_id" gorm:"type:uuid;not null;index"`
	Reason      string       `json:"reason" gorm:"type:text;not null"`
	Status      ReturnStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	AdminNote   string       `json:"admin_note,omitempty" gorm:"type:text"`
	Restocked   bool         `json:"restocked" gorm:"default:false"`
	ProcessedBy *uuid.UUID   `json:"processed_by,omitempty" gorm:"type:uuid"`
	ProcessedAt *time.Time   `json:"processed_at"`

	// Relationships
	Order *Order `json:"order,omitempty" gorm:"foreignKey:OrderID"`
}
