// internal/services/cart_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

type CartService struct {
	db     *gorm.DB
	orders *OrderService
}

type AddCartItemRequest struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	// Attributes selects a variant by its options when no variant_id is sent.
	Attributes map[string]string `json:"attributes,omitempty"`
	Quantity   int               `json:"quantity" validate:"required,min=1,max=99"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=99"`
}

type CheckoutRequest struct {
	AddressID       *uuid.UUID              `json:"address_id,omitempty"`
	ShippingAddress *models.ShippingAddress `json:"shipping_address,omitempty"`
	PaymentMethod   models.PaymentMethod    `json:"payment_method" validate:"required,oneof=CARD PAYPAL COD"`
	PaymentToken    string                  `json:"payment_token,omitempty" validate:"max=255"`
	Notes           string                  `json:"notes,omitempty" validate:"max=1000"`
}

type CartLine struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	VariantID    *uuid.UUID      `json:"variant_id,omitempty"`
	ProductName  string          `json:"product_name"`
	VariantLabel string          `json:"variant_label,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
	Available    int             `json:"available"`
	// Purchasable is false when the product is gone, hidden or short on stock.
	Purchasable bool `json:"purchasable"`
}

type CartView struct {
	Items       []CartLine      `json:"items"`
	ItemCount   int             `json:"item_count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Purchasable bool            `json:"purchasable"`
}

type CheckoutPreview struct {
	Cart           *CartView       `json:"cart"`
	DefaultAddress *models.Address `json:"default_address,omitempty"`
	PaymentMethods []string        `json:"payment_methods"`
}

func NewCartService(db *gorm.DB, orders *OrderService) *CartService {
	return &CartService{db: db, orders: orders}
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	var items []models.CartItem
	if err := s.db.WithContext(ctx).
		Preload("Product").
		Preload("Product.Images", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Variant").
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}

	view := &CartView{Items: make([]CartLine, 0, len(items)), Subtotal: decimal.Zero, Purchasable: len(items) > 0}
	for _, item := range items {
		line := buildCartLine(&item)
		view.Items = append(view.Items, line)
		view.ItemCount += line.Quantity
		view.Subtotal = view.Subtotal.Add(line.LineTotal)
		if !line.Purchasable {
			view.Purchasable = false
		}
	}
	return view, nil
}

func buildCartLine(item *models.CartItem) CartLine {
	line := CartLine{
		ID:        item.ID,
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Quantity:  item.Quantity,
		UnitPrice: decimal.Zero,
		LineTotal: decimal.Zero,
	}

	product := item.Product
	if product == nil {
		return line
	}
	line.ProductName = product.Name
	line.UnitPrice = product.Price
	line.Available = product.Stock
	if len(product.Images) > 0 {
		line.ImageURL = product.Images[0].URL
	}

	if item.VariantID != nil {
		if item.Variant == nil {
			line.Available = 0
			return line
		}
		line.VariantLabel = item.Variant.Label()
		line.UnitPrice = item.Variant.EffectivePrice(product)
		line.Available = item.Variant.Stock
	}

	line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	line.Purchasable = product.Status == models.ProductStatusActive && line.Available >= item.Quantity
	return line
}

// AddItem merges into an existing line for the same product and variant.
func (s *CartService) AddItem(ctx context.Context, userID uuid.UUID, req *AddCartItemRequest) (*CartView, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Preload("Variants").Where("id = ?", req.ProductID).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}
		if product.Status != models.ProductStatusActive {
			return ErrProductInactive
		}

		variant, err := selectVariant(&product, req.VariantID, req.Attributes)
		if err != nil {
			return err
		}

		available := product.Stock
		var variantID *uuid.UUID
		if variant != nil {
			available = variant.Stock
			variantID = &variant.ID
		}

		existing, err := findCartLine(tx, userID, product.ID, variantID)
		if err != nil {
			return err
		}

		quantity := req.Quantity
		if existing != nil {
			quantity += existing.Quantity
		}
		if quantity > available {
			return fmt.Errorf("%w for %s: %d available", ErrInsufficientStock, product.Name, available)
		}

		if existing != nil {
			return tx.Model(existing).Update("quantity", quantity).Error
		}
		return tx.Create(&models.CartItem{
			UserID:    userID,
			ProductID: product.ID,
			VariantID: variantID,
			Quantity:  quantity,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(ctx, userID)
}

func (s *CartService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, req *UpdateCartItemRequest) (*CartView, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var item models.CartItem
	if err := s.db.WithContext(ctx).Preload("Product").Preload("Variant").
		Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if item.Product == nil {
		return nil, ErrProductNotFound
	}

	available := item.Product.Stock
	if item.VariantID != nil {
		if item.Variant == nil {
			return nil, ErrVariantNotFound
		}
		available = item.Variant.Stock
	}
	if req.Quantity > available {
		return nil, fmt.Errorf("%w for %s: %d available", ErrInsufficientStock, item.Product.Name, available)
	}

	if err := s.db.WithContext(ctx).Model(&item).Update("quantity", req.Quantity).Error; err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	return s.GetCart(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartView, error) {
	result := s.db.WithContext(ctx).Unscoped().
		Where("id = ? AND user_id = ?", itemID, userID).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to remove cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrCartItemNotFound
	}

	return s.GetCart(ctx, userID)
}

func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.db.WithContext(ctx).Unscoped().Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Preview is the review step before checkout.
func (s *CartService) Preview(ctx context.Context, userID uuid.UUID) (*CheckoutPreview, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrCartEmpty
	}

	preview := &CheckoutPreview{
		Cart: cart,
		PaymentMethods: []string{
			string(models.PaymentMethodCard),
			string(models.PaymentMethodPayPal),
			string(models.PaymentMethodCOD),
		},
	}

	var address models.Address
	err = s.db.WithContext(ctx).Where("user_id = ? AND is_default = ?", userID, true).First(&address).Error
	if err == nil {
		preview.DefaultAddress = &address
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return preview, nil
}

// Checkout places an order for the whole cart and empties it on success.
func (s *CartService) Checkout(ctx context.Context, userID uuid.UUID, req *CheckoutRequest) (*models.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var items []models.CartItem
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}

	orderReq := &PlaceOrderRequest{
		AddressID:       req.AddressID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		PaymentToken:    req.PaymentToken,
		Notes:           req.Notes,
	}
	for _, item := range items {
		orderReq.Items = append(orderReq.Items, OrderItemRequest{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}

	order, err := s.orders.PlaceOrder(ctx, userID, orderReq)
	if err != nil {
		return nil, err
	}

	if err := s.Clear(ctx, userID); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("Order placed but cart was not cleared")
	}
	return order, nil
}

func selectVariant(product *models.Product, variantID *uuid.UUID, attributes map[string]string) (*models.Variant, error) {
	if variantID != nil {
		for i := range product.Variants {
			if product.Variants[i].ID == *variantID {
				return &product.Variants[i], nil
			}
		}
		return nil, ErrVariantNotFound
	}

	if len(attributes) > 0 {
		for i := range product.Variants {
			if product.Variants[i].Attributes.Matches(attributes) {
				return &product.Variants[i], nil
			}
		}
		return nil, ErrVariantNotFound
	}

	return nil, nil
}

func findCartLine(tx *gorm.DB, userID, productID uuid.UUID, variantID *uuid.UUID) (*models.CartItem, error) {
	query := tx.Where("user_id = ? AND product_id = ?", userID, productID)
	if variantID != nil {
		query = query.Where("variant_id = ?", *variantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}

	var item models.CartItem
	err := query.First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &item, nil
}
