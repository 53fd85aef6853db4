// internal/handlers/product.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gitsubas/blingblingstore-sub000/internal/i18n"
	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/services"
	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

type ProductHandler struct {
	productService *services.ProductService
	importService  *services.ImportService
}

func NewProductHandler(productService *services.ProductService, importService *services.ImportService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		importService:  importService,
	}
}

// GET /products
func (h *ProductHandler) GetProducts(c *gin.Context) {
	h.searchProducts(c, false)
}

// GET /admin/products
// Same filters as the storefront list plus draft and archived products.
func (h *ProductHandler) GetAllProducts(c *gin.Context) {
	h.searchProducts(c, true)
}

func (h *ProductHandler) searchProducts(c *gin.Context, includeHidden bool) {
	params := utils.GetPaginationParams(c)

	searchParams := services.ProductSearchParams{
		PaginationParams: params,
		IncludeHidden:    includeHidden,
	}

	if categoryIDStr := c.Query("category_id"); categoryIDStr != "" {
		if categoryID, err := uuid.Parse(categoryIDStr); err == nil {
			searchParams.CategoryID = &categoryID
		}
	}

	if status := c.Query("status"); status != "" && includeHidden {
		productStatus := models.ProductStatus(status)
		searchParams.Status = &productStatus
	}

	if priceMinStr := c.Query("price_min"); priceMinStr != "" {
		if priceMin, err := decimal.NewFromString(priceMinStr); err == nil {
			searchParams.PriceMin = &priceMin
		}
	}

	if priceMaxStr := c.Query("price_max"); priceMaxStr != "" {
		if priceMax, err := decimal.NewFromString(priceMaxStr); err == nil {
			searchParams.PriceMax = &priceMax
		}
	}

	if inStockStr := c.Query("in_stock"); inStockStr != "" {
		if inStock, err := strconv.ParseBool(inStockStr); err == nil {
			searchParams.InStock = &inStock
		}
	}

	products, total, err := h.productService.SearchProducts(c.Request.Context(), searchParams)
	if err != nil {
		respondError(c, err)
		return
	}

	result := utils.CreatePaginationResult(products, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id", "product ID")
	if !ok {
		return
	}

	product, err := h.productService.GetProduct(c.Request.Context(), id, utils.IsAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"product": product,
	})
}

// POST /admin/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductCreated),
		"product": product,
	})
}

// PUT /admin/products/:id
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := paramID(c, "id", "product ID")
	if !ok {
		return
	}

	var req services.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductUpdated),
		"product": product,
	})
}

// DELETE /admin/products/:id
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	id, ok := paramID(c, "id", "product ID")
	if !ok {
		return
	}

	if err := h.productService.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductDeleted),
	})
}

// POST /admin/products/:id/variants
func (h *ProductHandler) AddVariant(c *gin.Context) {
	productID, ok := paramID(c, "id", "product ID")
	if !ok {
		return
	}

	var req services.VariantRequest
	if !bindJSON(c, &req) {
		return
	}

	variant, err := h.productService.AddVariant(c.Request.Context(), productID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"variant": variant,
	})
}

// PUT /admin/products/:id/variants/:variantId
func (h *ProductHandler) UpdateVariant(c *gin.Context) {
	productID, ok := paramID(c, "id", "product ID")
	if !ok {
		return
	}
	variantID, ok := paramID(c, "variantId", "variant ID")
	if !ok {
		return
	}

	var req services.UpdateVariantRequest
	if !bindJSON(c, &req) {
		return
	}

	variant, err := h.productService.UpdateVariant(c.Request.Context(), productID, variantID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"variant": variant,
	})
}

// DELETE /admin/products/:id/variants/:variantId
func (h *ProductHandler) DeleteVariant(c *gin.Context) {
	productID, ok := paramID(c, "id", "product ID")
	if !ok {
		return
	}
	variantID, ok := paramID(c, "variantId", "variant ID")
	if !ok {
		return
	}

	if err := h.productService.DeleteVariant(c.Request.Context(), productID, variantID); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Variant deleted",
	})
}

// POST /admin/products/:id/images
func (h *ProductHandler) UploadImage(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	productID, ok := paramID(c, "id", "product ID")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "image"), nil)
		return
	}
	defer file.Close()

	image, err := h.productService.AddImage(c.Request.Context(), productID, file, header.Filename, header.Size)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyFileUploadSuccess),
		"image":   image,
	})
}

// DELETE /admin/products/:id/images/:imageId
func (h *ProductHandler) DeleteImage(c *gin.Context) {
	productID, ok := paramID(c, "id", "product ID")
	if !ok {
		return
	}
	imageID, ok := paramID(c, "imageId", "image ID")
	if !ok {
		return
	}

	if err := h.productService.DeleteImage(c.Request.Context(), productID, imageID); err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Image deleted",
	})
}

// POST /admin/products/import
func (h *ProductHandler) ImportProducts(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationRequired, "file"), nil)
		return
	}
	defer file.Close()

	result, err := h.importService.ImportProducts(c.Request.Context(), file)
	if err != nil {
		respondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyProductImported, result.Created),
		"result":  result,
	})
}
