package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/testutil"
)

func addressRequest(line1 string, isDefault bool) *AddressRequest {
	return &AddressRequest{
		FullName:   "Erin Doe",
		Phone:      "+15550199",
		Line1:      line1,
		City:       "Shelbyville",
		PostalCode: "54321",
		Country:    "US",
		IsDefault:  isDefault,
	}
}

func defaultAddressCount(t *testing.T, service *AddressService, userID uuid.UUID) int {
	t.Helper()
	addresses, err := service.ListAddresses(context.Background(), userID)
	require.NoError(t, err)
	count := 0
	for _, a := range addresses {
		if a.IsDefault {
			count++
		}
	}
	return count
}

func TestAddressDefaults(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	service := NewAddressService(db)
	user := testutil.CreateUser(t, db, "erin", models.UserRoleCustomer)

	first, err := service.CreateAddress(ctx, user.ID, addressRequest("1 First St", false))
	require.NoError(t, err)
	assert.True(t, first.IsDefault, "first address becomes the default")

	second, err := service.CreateAddress(ctx, user.ID, addressRequest("2 Second St", false))
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	third, err := service.CreateAddress(ctx, user.ID, addressRequest("3 Third St", true))
	require.NoError(t, err)
	assert.True(t, third.IsDefault)
	assert.Equal(t, 1, defaultAddressCount(t, service, user.ID))

	addresses, err := service.ListAddresses(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, addresses, 3)
	assert.Equal(t, third.ID, addresses[0].ID)

	_, err = service.SetDefault(ctx, user.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, defaultAddressCount(t, service, user.ID))

	// Turning the flag off on the default is ignored.
	updated, err := service.UpdateAddress(ctx, user.ID, first.ID, addressRequest("1 First Street", false))
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, "1 First Street", updated.Line1)
}

func TestDeleteDefaultAddressPromotesAnother(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	service := NewAddressService(db)
	user := testutil.CreateUser(t, db, "frank", models.UserRoleCustomer)

	first, err := service.CreateAddress(ctx, user.ID, addressRequest("1 First St", false))
	require.NoError(t, err)
	second, err := service.CreateAddress(ctx, user.ID, addressRequest("2 Second St", false))
	require.NoError(t, err)

	require.NoError(t, service.DeleteAddress(ctx, user.ID, first.ID))

	promoted, err := service.GetAddress(ctx, user.ID, second.ID)
	require.NoError(t, err)
	assert.True(t, promoted.IsDefault)

	require.NoError(t, service.DeleteAddress(ctx, user.ID, second.ID))
	addresses, err := service.ListAddresses(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, addresses)
}

func TestAddressOwnership(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	service := NewAddressService(db)
	owner := testutil.CreateUser(t, db, "grace", models.UserRoleCustomer)
	stranger := testutil.CreateUser(t, db, "heidi", models.UserRoleCustomer)

	address, err := service.CreateAddress(ctx, owner.ID, addressRequest("1 Private Rd", false))
	require.NoError(t, err)

	_, err = service.GetAddress(ctx, stranger.ID, address.ID)
	assert.ErrorIs(t, err, ErrAddressNotFound)
	_, err = service.UpdateAddress(ctx, stranger.ID, address.ID, addressRequest("hijack", false))
	assert.ErrorIs(t, err, ErrAddressNotFound)
	assert.ErrorIs(t, service.DeleteAddress(ctx, stranger.ID, address.ID), ErrAddressNotFound)
	_, err = service.SetDefault(ctx, stranger.ID, address.ID)
	assert.ErrorIs(t, err, ErrAddressNotFound)

	bad := addressRequest("1 Private Rd", false)
	bad.Country = "USA"
	_, err = service.CreateAddress(ctx, owner.ID, bad)
	assert.Error(t, err)
}
