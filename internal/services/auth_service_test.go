package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/testutil"
	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	cfg := testutil.TestConfig()
	utils.SetJWTSecret(cfg.JWT.SecretKey)
	return NewAuthService(testutil.NewTestDB(t), cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	service := newAuthService(t)

	resp, err := service.Register(ctx, &RegisterRequest{
		Username: "sparkle_fan",
		Email:    "Sparkle@Example.com",
		Password: "Password123!",
		FullName: "Sparkle Fan",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)
	assert.Equal(t, "sparkle@example.com", resp.User.Email)
	assert.Equal(t, models.UserRoleCustomer, resp.User.Role)

	claims, err := utils.ValidateJWT(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID.String(), claims.UserID)
	assert.Equal(t, "customer", claims.Role)

	login, err := service.Login(ctx, &LoginRequest{Email: "SPARKLE@example.com", Password: "Password123!"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)
	assert.NotNil(t, login.User.LastLoginAt)

	_, err = service.Login(ctx, &LoginRequest{Email: "sparkle@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidLogin)

	_, err = service.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "Password123!"})
	assert.ErrorIs(t, err, ErrInvalidLogin)
}

func TestRegisterRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	ctx := context.Background()
	service := newAuthService(t)

	_, err := service.Register(ctx, &RegisterRequest{Username: "first", Email: "dup@example.com", Password: "Password123!"})
	require.NoError(t, err)

	_, err = service.Register(ctx, &RegisterRequest{Username: "second", Email: "DUP@example.com", Password: "Password123!"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = service.Register(ctx, &RegisterRequest{Username: "first", Email: "other@example.com", Password: "Password123!"})
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = service.Register(ctx, &RegisterRequest{Username: "weak", Email: "weak@example.com", Password: "password"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	_, err = service.Register(ctx, &RegisterRequest{Username: "no spaces", Email: "space@example.com", Password: "Password123!"})
	assert.Error(t, err)
}

func TestLoginRejectsSuspendedAccount(t *testing.T) {
	ctx := context.Background()
	service := newAuthService(t)

	user := testutil.CreateUser(t, service.db, "suspended", models.UserRoleCustomer)
	require.NoError(t, service.db.Model(user).Update("status", models.UserStatusSuspended).Error)

	_, err := service.Login(ctx, &LoginRequest{Email: user.Email, Password: "Password123!"})
	assert.ErrorIs(t, err, ErrAccountSuspended)
}

func TestRefreshToken(t *testing.T) {
	ctx := context.Background()
	service := newAuthService(t)

	resp, err := service.Register(ctx, &RegisterRequest{Username: "refresher", Email: "refresh@example.com", Password: "Password123!"})
	require.NoError(t, err)

	refreshed, err := service.RefreshToken(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, refreshed.User.ID)
	assert.NotEmpty(t, refreshed.AccessToken)

	// An access token is not a refresh token.
	_, err = service.RefreshToken(ctx, resp.AccessToken)
	assert.Error(t, err)

	_, err = service.RefreshToken(ctx, "garbage")
	assert.Error(t, err)
}
