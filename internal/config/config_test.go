package config

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DB_TX_ISOLATION", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "blingbling_store", cfg.Database.Database)
	assert.Equal(t, 5, cfg.Store.LowStockThreshold)
	assert.Equal(t, "usd", cfg.Payment.Currency)
	assert.Nil(t, cfg.Database.TxOptions())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_AUTO_MIGRATE", "TRUE")
	t.Setenv("DB_TX_ISOLATION", "serializable")
	t.Setenv("LOW_STOCK_THRESHOLD", "2")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 2, cfg.Store.LowStockThreshold)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Frontend.Origins)
	require.NotNil(t, cfg.Database.TxOptions())
	assert.Equal(t, sql.LevelSerializable, cfg.Database.TxOptions().Isolation)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Environment: "production",
		JWT:         JWTConfig{SecretKey: defaultJWTSecret},
		Database:    DatabaseConfig{Password: "secret"},
	}
	assert.Error(t, cfg.Validate())

	cfg.JWT.SecretKey = "rotated"
	assert.NoError(t, cfg.Validate())

	cfg.Database.Password = ""
	assert.Error(t, cfg.Validate())

	cfg.Database.Password = "secret"
	cfg.Database.TxIsolation = "chaos"
	assert.Error(t, cfg.Validate())
}

func TestDatabaseURL(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		User:     "shop",
		Password: "p@ss",
		Database: "store",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgres://shop:p%40ss@db:5432/store?sslmode=disable", d.URL())
	assert.Contains(t, d.DSN(), "dbname=store")
}
