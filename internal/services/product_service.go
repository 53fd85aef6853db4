// internal/services/product_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

type ProductService struct {
	db      *gorm.DB
	storage *StorageService
}

type VariantRequest struct {
	SKU        string            `json:"sku,omitempty" validate:"max=64"`
	Attributes map[string]string `json:"attributes" validate:"required,min=1"`
	Price      decimal.Decimal   `json:"price"`
	Stock      int               `json:"stock" validate:"min=0"`
}

type CreateProductRequest struct {
	Name        string               `json:"name" validate:"required,min=2,max=255"`
	Description string               `json:"description,omitempty"`
	Price       decimal.Decimal      `json:"price"`
	Stock       int                  `json:"stock" validate:"min=0"`
	CategoryID  *uuid.UUID           `json:"category_id,omitempty"`
	Status      models.ProductStatus `json:"status,omitempty" validate:"omitempty,oneof=draft active archived"`
	Variants    []VariantRequest     `json:"variants,omitempty" validate:"dive"`
}

type UpdateProductRequest struct {
	Name        *string               `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	Description *string               `json:"description,omitempty"`
	Price       *decimal.Decimal      `json:"price,omitempty"`
	Stock       *int                  `json:"stock,omitempty" validate:"omitempty,min=0"`
	CategoryID  *uuid.UUID            `json:"category_id,omitempty"`
	Status      *models.ProductStatus `json:"status,omitempty" validate:"omitempty,oneof=draft active archived"`
}

type UpdateVariantRequest struct {
	SKU        *string           `json:"sku,omitempty" validate:"omitempty,max=64"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Price      *decimal.Decimal  `json:"price,omitempty"`
	Stock      *int              `json:"stock,omitempty" validate:"omitempty,min=0"`
}

type ProductSearchParams struct {
	utils.PaginationParams
	CategoryID *uuid.UUID            `json:"category_id,omitempty"`
	Status     *models.ProductStatus `json:"status,omitempty"`
	PriceMin   *decimal.Decimal      `json:"price_min,omitempty"`
	PriceMax   *decimal.Decimal      `json:"price_max,omitempty"`
	InStock    *bool                 `json:"in_stock,omitempty"`
	// IncludeHidden lets admins see draft and archived products.
	IncludeHidden bool `json:"-"`
}

func NewProductService(db *gorm.DB, storage *StorageService) *ProductService {
	return &ProductService{
		db:      db,
		storage: storage,
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if !req.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	for _, v := range req.Variants {
		if v.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
	}
	if err := s.checkCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.ProductStatusActive
	}

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		Status:      status,
	}
	for _, v := range req.Variants {
		product.Variants = append(product.Variants, models.Variant{
			SKU:        v.SKU,
			Attributes: models.Attributes(v.Attributes),
			Price:      v.Price.Round(2),
			Stock:      v.Stock,
		})
	}

	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	logrus.WithField("product_id", product.ID).Info("Product created")
	return s.GetProduct(ctx, product.ID, true)
}

// GetProduct returns a product with its category, variants and images. Hidden
// products are reported as missing unless includeHidden is set.
func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID, includeHidden bool) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("created_at asc") }).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !includeHidden && product.Status != models.ProductStatusActive {
		return nil, ErrProductNotFound
	}

	return &product, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, req *UpdateProductRequest) (*models.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var product models.Product
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			return nil, ErrInvalidPrice
		}
		updates["price"] = req.Price.Round(2)
	}
	if req.Stock != nil {
		updates["stock"] = *req.Stock
	}
	if req.CategoryID != nil {
		if err := s.checkCategory(ctx, req.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *req.CategoryID
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&product).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update product: %w", err)
		}
	}

	return s.GetProduct(ctx, id, true)
}

// DeleteProduct soft deletes the product. Existing order lines keep their
// name and price snapshot.
func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&models.Product{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete product: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrProductNotFound
		}

		if err := tx.Unscoped().Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to remove product from carts: %w", err)
		}
		return nil
	})
}

func (s *ProductService) SearchProducts(ctx context.Context, params ProductSearchParams) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})

	if params.Status != nil && params.IncludeHidden {
		query = query.Where("products.status = ?", *params.Status)
	} else if !params.IncludeHidden {
		query = query.Where("products.status = ?", models.ProductStatusActive)
	}

	if params.CategoryID != nil {
		query = query.Where("products.category_id = ?", *params.CategoryID)
	} else if params.Category != "" {
		query = query.Where("products.category_id IN (?)",
			s.db.Model(&models.Category{}).Select("id").Where("slug = ?", params.Category))
	}

	if params.Search != "" {
		searchTerm := utils.LikePattern(params.Search)
		query = query.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ?", searchTerm, searchTerm)
	}

	if params.PriceMin != nil {
		query = query.Where("products.price >= ?", *params.PriceMin)
	}
	if params.PriceMax != nil {
		query = query.Where("products.price <= ?", *params.PriceMax)
	}

	if params.InStock != nil && *params.InStock {
		query = query.Where("products.stock > 0 OR EXISTS (SELECT 1 FROM variants WHERE variants.product_id = products.id AND variants.stock > 0 AND variants.deleted_at IS NULL)")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "name", "price", "stock"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var products []models.Product
	err := query.Preload("Category").
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Variants").
		Find(&products).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	return products, total, nil
}

func (s *ProductService) AddVariant(ctx context.Context, productID uuid.UUID, req *VariantRequest) (*models.Variant, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if _, err := s.GetProduct(ctx, productID, true); err != nil {
		return nil, err
	}

	variant := &models.Variant{
		ProductID:  productID,
		SKU:        req.SKU,
		Attributes: models.Attributes(req.Attributes),
		Price:      req.Price.Round(2),
		Stock:      req.Stock,
	}
	if err := s.db.WithContext(ctx).Create(variant).Error; err != nil {
		return nil, fmt.Errorf("failed to create variant: %w", err)
	}
	return variant, nil
}

func (s *ProductService) UpdateVariant(ctx context.Context, productID, variantID uuid.UUID, req *UpdateVariantRequest) (*models.Variant, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	variant, err := s.getVariant(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.SKU != nil {
		updates["sku"] = *req.SKU
	}
	if len(req.Attributes) > 0 {
		updates["attributes"] = models.Attributes(req.Attributes)
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		updates["price"] = req.Price.Round(2)
	}
	if req.Stock != nil {
		updates["stock"] = *req.Stock
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(variant).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update variant: %w", err)
		}
	}

	return s.getVariant(ctx, productID, variantID)
}

func (s *ProductService) DeleteVariant(ctx context.Context, productID, variantID uuid.UUID) error {
	variant, err := s.getVariant(ctx, productID, variantID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(variant).Error; err != nil {
			return fmt.Errorf("failed to delete variant: %w", err)
		}
		return tx.Unscoped().Where("variant_id = ?", variantID).Delete(&models.CartItem{}).Error
	})
}

// AddImage stores the upload and appends it to the product's gallery.
func (s *ProductService) AddImage(ctx context.Context, productID uuid.UUID, r io.Reader, filename string, size int64) (*models.ProductImage, error) {
	if _, err := s.GetProduct(ctx, productID, true); err != nil {
		return nil, err
	}

	upload, err := s.storage.Upload(ctx, r, filename, size, ProductImageOptions())
	if err != nil {
		return nil, err
	}

	var count int64
	s.db.WithContext(ctx).Model(&models.ProductImage{}).Where("product_id = ?", productID).Count(&count)

	image := &models.ProductImage{
		ProductID:  productID,
		URL:        upload.URL,
		StorageKey: upload.Key,
		Position:   int(count),
	}
	if err := s.db.WithContext(ctx).Create(image).Error; err != nil {
		if derr := s.storage.DeleteFile(ctx, upload.Key); derr != nil {
			logrus.WithError(derr).WithField("key", upload.Key).Warn("Failed to remove orphaned upload")
		}
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	return image, nil
}

func (s *ProductService) DeleteImage(ctx context.Context, productID, imageID uuid.UUID) error {
	var image models.ProductImage
	if err := s.db.WithContext(ctx).Where("id = ? AND product_id = ?", imageID, productID).First(&image).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrImageNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}

	if err := s.db.WithContext(ctx).Unscoped().Delete(&image).Error; err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	if err := s.storage.DeleteFile(ctx, image.StorageKey); err != nil {
		logrus.WithError(err).WithField("key", image.StorageKey).Warn("Failed to delete stored image")
	}
	return nil
}

func (s *ProductService) getVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	if err := s.db.WithContext(ctx).Where("id = ? AND product_id = ?", variantID, productID).First(&variant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVariantNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &variant, nil
}

func (s *ProductService) checkCategory(ctx context.Context, categoryID *uuid.UUID) error {
	if categoryID == nil {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", *categoryID).Count(&count).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	if count == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
