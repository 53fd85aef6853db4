// internal/testutil/testutil.go
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gitsubas/blingblingstore-sub000/internal/config"
	"github.com/gitsubas/blingblingstore-sub000/internal/database"
	"github.com/gitsubas/blingblingstore-sub000/internal/models"
)

// NewTestDB opens a private in-memory SQLite database with the full schema.
// It holds a single connection, so every query inside a transaction must go
// through the transaction handle.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// TestConfig returns a development configuration suitable for services.
func TestConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT: config.JWTConfig{
			SecretKey:       "test-secret",
			AccessTokenTTL:  1,
			RefreshTokenTTL: 24,
		},
		Payment:  config.PaymentConfig{Currency: "usd"},
		Frontend: config.FrontendConfig{BaseURL: "http://localhost:3000"},
		Store: config.StoreConfig{
			Name:              "BlingBling Store",
			LowStockThreshold: 5,
		},
	}
}

func CreateUser(t testing.TB, db *gorm.DB, username string, role models.UserRole) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		FullName: username,
		Role:     role,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("Password123!"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func CreateProduct(t testing.TB, db *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: models.ProductStatusActive,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func CreateVariant(t testing.TB, db *gorm.DB, productID uuid.UUID, attrs map[string]string, price string, stock int) *models.Variant {
	t.Helper()

	variant := &models.Variant{
		ProductID:  productID,
		Attributes: models.Attributes(attrs),
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
	}
	require.NoError(t, db.Create(variant).Error)
	return variant
}

func CreateAddress(t testing.TB, db *gorm.DB, userID uuid.UUID, isDefault bool) *models.Address {
	t.Helper()

	address := &models.Address{
		UserID:     userID,
		FullName:   "Jamie Doe",
		Phone:      "+15550100",
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
		IsDefault:  isDefault,
	}
	require.NoError(t, db.Create(address).Error)
	return address
}

// ShippingAddress is a valid inline address for order requests.
func ShippingAddress() *models.ShippingAddress {
	return &models.ShippingAddress{
		FullName:   "Jamie Doe",
		Phone:      "+15550100",
		Line1:      "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
	}
}

func Stock(t testing.TB, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()

	var product models.Product
	require.NoError(t, db.Unscoped().Where("id = ?", productID).First(&product).Error)
	return product.Stock
}

func VariantStock(t testing.TB, db *gorm.DB, variantID uuid.UUID) int {
	t.Helper()

	var variant models.Variant
	require.NoError(t, db.Unscoped().Where("id = ?", variantID).First(&variant).Error)
	return variant.Stock
}
