package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/testutil"
	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

type CatalogTestSuite struct {
	suite.Suite
	ctx        context.Context
	db         *gorm.DB
	uploadDir  string
	products   *ProductService
	categories *CategoryService
	imports    *ImportService
}

func (suite *CatalogTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = testutil.NewTestDB(suite.T())
	suite.uploadDir = suite.T().TempDir()

	cfg := testutil.TestConfig()
	cfg.Server.UploadDir = suite.uploadDir
	cfg.Server.PublicURL = "http://localhost:8080"
	storage, err := NewStorageService(cfg)
	suite.Require().NoError(err)

	suite.products = NewProductService(suite.db, storage)
	suite.categories = NewCategoryService(suite.db)
	suite.imports = NewImportService(suite.db, suite.categories)
}

func (suite *CatalogTestSuite) createCategory(name string) *models.Category {
	category, err := suite.categories.CreateCategory(suite.ctx, &CategoryRequest{Name: name})
	suite.Require().NoError(err)
	return category
}

func (suite *CatalogTestSuite) TestCreateProductWithVariants() {
	t := suite.T()
	category := suite.createCategory("Rings")

	product, err := suite.products.CreateProduct(suite.ctx, &CreateProductRequest{
		Name:       "Solitaire Ring",
		Price:      decimal.RequireFromString("249.999"),
		Stock:      0,
		CategoryID: &category.ID,
		Variants: []VariantRequest{
			{SKU: "SOL-6", Attributes: map[string]string{"size": "6"}, Stock: 3},
			{SKU: "SOL-8", Attributes: map[string]string{"size": "8"}, Price: decimal.RequireFromString("279"), Stock: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ProductStatusActive, product.Status)
	assert.True(t, decimal.RequireFromString("250").Equal(product.Price))
	require.NotNil(t, product.Category)
	assert.Equal(t, "rings", product.Category.Slug)
	require.Len(t, product.Variants, 2)
	for _, v := range product.Variants {
		switch v.SKU {
		case "SOL-6":
			assert.True(t, product.Price.Equal(v.EffectivePrice(product)))
		case "SOL-8":
			assert.True(t, decimal.RequireFromString("279").Equal(v.EffectivePrice(product)))
		default:
			t.Errorf("unexpected variant %s", v.SKU)
		}
	}
}

func (suite *CatalogTestSuite) TestCreateProductValidation() {
	t := suite.T()

	_, err := suite.products.CreateProduct(suite.ctx, &CreateProductRequest{Name: "Free Ring", Price: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = suite.products.CreateProduct(suite.ctx, &CreateProductRequest{Name: "Minus Ring", Price: decimal.RequireFromString("-1")})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	missing := uuid.New()
	_, err = suite.products.CreateProduct(suite.ctx, &CreateProductRequest{Name: "Lost Ring", Price: decimal.NewFromInt(5), CategoryID: &missing})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	_, err = suite.products.CreateProduct(suite.ctx, &CreateProductRequest{Name: "X", Price: decimal.NewFromInt(5)})
	assert.Error(t, err)

	_, err = suite.products.CreateProduct(suite.ctx, &CreateProductRequest{
		Name:     "Bad Variant",
		Price:    decimal.NewFromInt(5),
		Variants: []VariantRequest{{Stock: 1}},
	})
	assert.Error(t, err)
}

func (suite *CatalogTestSuite) TestHiddenProducts() {
	t := suite.T()
	draft := models.ProductStatusDraft
	product, err := suite.products.CreateProduct(suite.ctx, &CreateProductRequest{
		Name:   "Secret Ring",
		Price:  decimal.NewFromInt(10),
		Status: draft,
	})
	require.NoError(t, err)

	_, err = suite.products.GetProduct(suite.ctx, product.ID, false)
	assert.ErrorIs(t, err, ErrProductNotFound)

	found, err := suite.products.GetProduct(suite.ctx, product.ID, true)
	require.NoError(t, err)
	assert.Equal(t, draft, found.Status)

	active := models.ProductStatusActive
	updated, err := suite.products.UpdateProduct(suite.ctx, product.ID, &UpdateProductRequest{Status: &active})
	require.NoError(t, err)
	assert.Equal(t, active, updated.Status)

	_, err = suite.products.GetProduct(suite.ctx, product.ID, false)
	assert.NoError(t, err)
}

func (suite *CatalogTestSuite) TestSearchProducts() {
	t := suite.T()
	rings := suite.createCategory("Rings")
	necklaces := suite.createCategory("Necklaces")

	mk := func(name, price string, stock int, category *models.Category, status models.ProductStatus) {
		_, err := suite.products.CreateProduct(suite.ctx, &CreateProductRequest{
			Name:       name,
			Price:      decimal.RequireFromString(price),
			Stock:      stock,
			CategoryID: &category.ID,
			Status:     status,
		})
		require.NoError(t, err)
	}
	mk("Gold Ring", "100.00", 5, rings, models.ProductStatusActive)
	mk("Silver Ring", "40.00", 0, rings, models.ProductStatusActive)
	mk("Pearl Necklace", "150.00", 2, necklaces, models.ProductStatusActive)
	mk("Archived Ring", "10.00", 9, rings, models.ProductStatusArchived)

	params := ProductSearchParams{PaginationParams: testPagination()}
	all, total, err := suite.products.SearchProducts(suite.ctx, params)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	params.Search = "RING"
	found, total, err := suite.products.SearchProducts(suite.ctx, params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, found, 2)

	inStock := true
	params.InStock = &inStock
	found, total, err = suite.products.SearchProducts(suite.ctx, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Gold Ring", found[0].Name)

	low := decimal.RequireFromString("50")
	high := decimal.RequireFromString("120")
	byPrice, total, err := suite.products.SearchProducts(suite.ctx, ProductSearchParams{
		PaginationParams: testPagination(),
		PriceMin:         &low,
		PriceMax:         &high,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Gold Ring", byPrice[0].Name)

	bySlug := testPagination()
	bySlug.Category = "necklaces"
	found, total, err = suite.products.SearchProducts(suite.ctx, ProductSearchParams{PaginationParams: bySlug})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Pearl Necklace", found[0].Name)

	sorted := testPagination()
	sorted.Sort = "price"
	sorted.Order = "asc"
	found, _, err = suite.products.SearchProducts(suite.ctx, ProductSearchParams{PaginationParams: sorted, IncludeHidden: true})
	require.NoError(t, err)
	require.Len(t, found, 4)
	assert.Equal(t, "Archived Ring", found[0].Name)
	assert.Equal(t, "Pearl Necklace", found[3].Name)
}

func (suite *CatalogTestSuite) TestInStockCountsVariants() {
	t := suite.T()
	product := testutil.CreateProduct(t, suite.db, "Sized Ring", "30.00", 0)
	testutil.CreateVariant(t, suite.db, product.ID, map[string]string{"size": "7"}, "0", 2)

	inStock := true
	found, total, err := suite.products.SearchProducts(suite.ctx, ProductSearchParams{
		PaginationParams: testPagination(),
		InStock:          &inStock,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, found[0].Variants, 1)
}

func (suite *CatalogTestSuite) TestDeleteProductKeepsOrderHistory() {
	t := suite.T()
	user := testutil.CreateUser(t, suite.db, "shopper", models.UserRoleCustomer)
	product := testutil.CreateProduct(t, suite.db, "Doomed Ring", "12.00", 5)
	orders := NewOrderService(suite.db, NewPaymentServiceWithGateway(&MockGateway{}, "usd"), nil, testutil.TestConfig())

	order, err := orders.PlaceOrder(suite.ctx, user.ID, &PlaceOrderRequest{
		Items:           []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testutil.ShippingAddress(),
		PaymentMethod:   models.PaymentMethodCOD,
	})
	require.NoError(t, err)
	require.NoError(t, suite.db.Create(&models.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: 1}).Error)

	require.NoError(t, suite.products.DeleteProduct(suite.ctx, product.ID))
	assert.ErrorIs(t, suite.products.DeleteProduct(suite.ctx, product.ID), ErrProductNotFound)

	_, err = suite.products.GetProduct(suite.ctx, product.ID, true)
	assert.ErrorIs(t, err, ErrProductNotFound)

	var cartItems int64
	suite.db.Model(&models.CartItem{}).Where("product_id = ?", product.ID).Count(&cartItems)
	assert.Zero(t, cartItems)

	history, err := orders.GetOrder(suite.ctx, order.ID, user.ID, false)
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.Equal(t, "Doomed Ring", history.Items[0].ProductName)

	// Cancelling restores stock on the deleted row too.
	_, err = orders.CancelOrder(suite.ctx, order.ID, user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 5, testutil.Stock(t, suite.db, product.ID))
}

func (suite *CatalogTestSuite) TestVariantLifecycle() {
	t := suite.T()
	product := testutil.CreateProduct(t, suite.db, "Chain", "20.00", 0)

	variant, err := suite.products.AddVariant(suite.ctx, product.ID, &VariantRequest{
		SKU:        "CH-40",
		Attributes: map[string]string{"length": "40cm"},
		Stock:      4,
	})
	require.NoError(t, err)

	price := decimal.RequireFromString("24.50")
	stock := 9
	updated, err := suite.products.UpdateVariant(suite.ctx, product.ID, variant.ID, &UpdateVariantRequest{Price: &price, Stock: &stock})
	require.NoError(t, err)
	assert.True(t, price.Equal(updated.Price))
	assert.Equal(t, 9, updated.Stock)
	assert.Equal(t, "length: 40cm", updated.Label())

	other := testutil.CreateProduct(t, suite.db, "Other", "5.00", 1)
	_, err = suite.products.UpdateVariant(suite.ctx, other.ID, variant.ID, &UpdateVariantRequest{Stock: &stock})
	assert.ErrorIs(t, err, ErrVariantNotFound)

	negative := decimal.RequireFromString("-1")
	_, err = suite.products.UpdateVariant(suite.ctx, product.ID, variant.ID, &UpdateVariantRequest{Price: &negative})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	require.NoError(t, suite.products.DeleteVariant(suite.ctx, product.ID, variant.ID))
	found, err := suite.products.GetProduct(suite.ctx, product.ID, true)
	require.NoError(t, err)
	assert.Empty(t, found.Variants)
}

func (suite *CatalogTestSuite) TestProductImages() {
	t := suite.T()
	product := testutil.CreateProduct(t, suite.db, "Shiny Ring", "20.00", 1)

	first, err := suite.products.AddImage(suite.ctx, product.ID, bytes.NewReader(pngHeader), "front.png", int64(len(pngHeader)))
	require.NoError(t, err)
	second, err := suite.products.AddImage(suite.ctx, product.ID, bytes.NewReader(pngHeader), "side.PNG", int64(len(pngHeader)))
	require.NoError(t, err)

	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 1, second.Position)
	assert.True(t, strings.HasPrefix(first.URL, "http://localhost:8080/uploads/products/"))
	assert.FileExists(t, filepath.Join(suite.uploadDir, filepath.FromSlash(first.StorageKey)))

	_, err = suite.products.AddImage(suite.ctx, product.ID, strings.NewReader("not an image"), "fake.png", 12)
	assert.ErrorIs(t, err, ErrInvalidUploadFile)

	_, err = suite.products.AddImage(suite.ctx, product.ID, bytes.NewReader(pngHeader), "script.exe", int64(len(pngHeader)))
	assert.ErrorIs(t, err, ErrInvalidUploadFile)

	require.NoError(t, suite.products.DeleteImage(suite.ctx, product.ID, first.ID))
	_, statErr := os.Stat(filepath.Join(suite.uploadDir, filepath.FromSlash(first.StorageKey)))
	assert.True(t, os.IsNotExist(statErr))
	assert.ErrorIs(t, suite.products.DeleteImage(suite.ctx, product.ID, first.ID), ErrImageNotFound)

	found, err := suite.products.GetProduct(suite.ctx, product.ID, false)
	require.NoError(t, err)
	require.Len(t, found.Images, 1)
	assert.Equal(t, second.ID, found.Images[0].ID)
}

func (suite *CatalogTestSuite) TestCategories() {
	t := suite.T()
	rings := suite.createCategory("Rings")
	suite.createCategory("Anklets")

	_, err := suite.categories.CreateCategory(suite.ctx, &CategoryRequest{Name: "rings"})
	assert.ErrorIs(t, err, ErrCategoryExists)

	testutil.CreateProduct(t, suite.db, "Band", "10.00", 1)
	require.NoError(t, suite.db.Model(&models.Product{}).Where("name = ?", "Band").Update("category_id", rings.ID).Error)

	list, err := suite.categories.ListCategories(suite.ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Anklets", list[0].Name)
	assert.Equal(t, int64(0), list[0].ProductCount)
	assert.Equal(t, int64(1), list[1].ProductCount)

	updated, err := suite.categories.UpdateCategory(suite.ctx, rings.ID, &CategoryRequest{Name: "Fine Rings", Description: "Gold and platinum"})
	require.NoError(t, err)
	assert.Equal(t, "fine-rings", updated.Slug)

	_, err = suite.categories.UpdateCategory(suite.ctx, rings.ID, &CategoryRequest{Name: "Anklets"})
	assert.ErrorIs(t, err, ErrCategoryExists)

	assert.ErrorIs(t, suite.categories.DeleteCategory(suite.ctx, rings.ID), ErrCategoryInUse)
	assert.ErrorIs(t, suite.categories.DeleteCategory(suite.ctx, uuid.New()), ErrCategoryNotFound)

	require.NoError(t, suite.db.Model(&models.Product{}).Where("name = ?", "Band").Update("category_id", nil).Error)
	require.NoError(t, suite.categories.DeleteCategory(suite.ctx, rings.ID))

	// Hard delete frees the name.
	suite.createCategory("Fine Rings")
}

func (suite *CatalogTestSuite) TestImportProducts() {
	t := suite.T()
	csvData := "\ufeffname,description,price,stock,category,sku,images\n" +
		"Gold Hoops,14k hoops,89.90,12,Earrings,HOOP-14K,https://cdn.example.com/a.jpg;https://cdn.example.com/b.jpg\n" +
		"Broken Price,,abc,1,Earrings,,\n" +
		",,\n" +
		"Silver Studs,,25,3,earrings,,\n" +
		"Free Thing,,0,1,,,\n"

	result, err := suite.imports.ImportProducts(suite.ctx, strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "invalid price")
	assert.Equal(t, 6, result.Errors[1].Row)

	var categories []models.Category
	require.NoError(t, suite.db.Find(&categories).Error)
	require.Len(t, categories, 1)
	assert.Equal(t, "earrings", categories[0].Slug)

	params := utils.PaginationParams{Page: 1, Limit: 10, Search: "hoops"}
	found, _, err := suite.products.SearchProducts(suite.ctx, ProductSearchParams{PaginationParams: params})
	require.NoError(t, err)
	require.Len(t, found, 1)
	hoops := found[0]
	assert.True(t, decimal.RequireFromString("89.90").Equal(hoops.Price))
	assert.Equal(t, 12, hoops.Stock)
	require.Len(t, hoops.Images, 2)
	assert.Equal(t, "https://cdn.example.com/a.jpg", hoops.Images[0].URL)
	require.Len(t, hoops.Variants, 1)
	assert.Equal(t, "HOOP-14K", hoops.Variants[0].SKU)
}

func (suite *CatalogTestSuite) TestImportRejectsBadHeader() {
	t := suite.T()

	_, err := suite.imports.ImportProducts(suite.ctx, strings.NewReader("title,cost\nRing,5\n"))
	assert.ErrorIs(t, err, ErrInvalidUploadFile)

	_, err = suite.imports.ImportProducts(suite.ctx, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidUploadFile)
}

func TestCatalogTestSuite(t *testing.T) {
	suite.Run(t, new(CatalogTestSuite))
}
