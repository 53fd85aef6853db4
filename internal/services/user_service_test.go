package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	service := NewUserService(db)
	user := testutil.CreateUser(t, db, "alice", models.UserRoleCustomer)
	testutil.CreateUser(t, db, "bob", models.UserRoleCustomer)

	updated, err := service.UpdateProfile(ctx, user.ID, &UpdateUserProfileRequest{
		FullName: strPtr("Alice Liddell"),
		Phone:    strPtr("+15550123"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", updated.FullName)
	assert.Equal(t, "+15550123", updated.Phone)
	assert.Equal(t, "alice", updated.Username)

	_, err = service.UpdateProfile(ctx, user.ID, &UpdateUserProfileRequest{Username: strPtr("bob")})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	renamed, err := service.UpdateProfile(ctx, user.ID, &UpdateUserProfileRequest{Username: strPtr("alice_l")})
	require.NoError(t, err)
	assert.Equal(t, "alice_l", renamed.Username)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	service := NewUserService(db)
	user := testutil.CreateUser(t, db, "carol", models.UserRoleCustomer)

	err := service.ChangePassword(ctx, user.ID, &ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "NewPassword1!"})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	err = service.ChangePassword(ctx, user.ID, &ChangePasswordRequest{CurrentPassword: "Password123!", NewPassword: "short"})
	assert.Error(t, err)

	require.NoError(t, service.ChangePassword(ctx, user.ID, &ChangePasswordRequest{
		CurrentPassword: "Password123!",
		NewPassword:     "NewPassword1!",
	}))

	reloaded, err := service.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NoError(t, reloaded.CheckPassword("NewPassword1!"))
	assert.Error(t, reloaded.CheckPassword("Password123!"))
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	service := NewUserService(db)
	orders := NewOrderService(db, NewPaymentServiceWithGateway(&MockGateway{}, "usd"), nil, testutil.TestConfig())

	user := testutil.CreateUser(t, db, "dave", models.UserRoleCustomer)
	product := testutil.CreateProduct(t, db, "Ring", "10.00", 5)
	require.NoError(t, db.Create(&models.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: 1}).Error)

	order, err := orders.PlaceOrder(ctx, user.ID, &PlaceOrderRequest{
		Items:           []OrderItemRequest{{ProductID: product.ID, Quantity: 1}},
		ShippingAddress: testutil.ShippingAddress(),
		PaymentMethod:   models.PaymentMethodCOD,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, service.DeleteAccount(ctx, user.ID, "wrong"), ErrInvalidPassword)
	assert.ErrorIs(t, service.DeleteAccount(ctx, user.ID, "Password123!"), ErrAccountHasOrders)

	_, err = orders.CancelOrder(ctx, order.ID, user.ID, "")
	require.NoError(t, err)

	require.NoError(t, service.DeleteAccount(ctx, user.ID, "Password123!"))

	_, err = service.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	var cartItems int64
	db.Model(&models.CartItem{}).Where("user_id = ?", user.ID).Count(&cartItems)
	assert.Zero(t, cartItems)
}
