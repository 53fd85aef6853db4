package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/gitsubas/blingblingstore-sub000/internal/models"
	"github.com/gitsubas/blingblingstore-sub000/internal/testutil"
)

type CartServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *gorm.DB
	service *CartService
	user    *models.User
}

func (suite *CartServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = testutil.NewTestDB(suite.T())
	orders := NewOrderService(suite.db, NewPaymentServiceWithGateway(&MockGateway{}, "usd"), nil, testutil.TestConfig())
	suite.service = NewCartService(suite.db, orders)
	suite.user = testutil.CreateUser(suite.T(), suite.db, "cartman", models.UserRoleCustomer)
}

func (suite *CartServiceTestSuite) TestAddItemMergesAndCapsAtStock() {
	t := suite.T()
	product := testutil.CreateProduct(t, suite.db, "Charm", "4.50", 5)

	cart, err := suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	cart, err = suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.Equal(t, 4, cart.ItemCount)
	assert.True(t, decimal.RequireFromString("18.00").Equal(cart.Subtotal))
	assert.True(t, cart.Purchasable)

	_, err = suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{ProductID: product.ID, Quantity: 2})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{ProductID: uuid.New(), Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{ProductID: product.ID, Quantity: 0})
	assert.Error(t, err)
}

func (suite *CartServiceTestSuite) TestAddItemSelectsVariantByAttributes() {
	t := suite.T()
	product := testutil.CreateProduct(t, suite.db, "Ring", "50.00", 0)
	small := testutil.CreateVariant(t, suite.db, product.ID, map[string]string{"size": "6", "metal": "gold"}, "0", 3)
	testutil.CreateVariant(t, suite.db, product.ID, map[string]string{"size": "8", "metal": "gold"}, "65.00", 3)

	cart, err := suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{
		ProductID:  product.ID,
		Attributes: map[string]string{"metal": "gold", "size": "6"},
		Quantity:   1,
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, small.ID, *cart.Items[0].VariantID)
	assert.Equal(t, "metal: gold, size: 6", cart.Items[0].VariantLabel)
	assert.True(t, decimal.RequireFromString("50").Equal(cart.Items[0].UnitPrice))

	cart, err = suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{
		ProductID:  product.ID,
		Attributes: map[string]string{"metal": "gold", "size": "8"},
		Quantity:   2,
	})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
	assert.True(t, decimal.RequireFromString("180").Equal(cart.Subtotal))

	_, err = suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{
		ProductID:  product.ID,
		Attributes: map[string]string{"metal": "platinum", "size": "6"},
		Quantity:   1,
	})
	assert.ErrorIs(t, err, ErrVariantNotFound)
}

func (suite *CartServiceTestSuite) TestUpdateAndRemoveItems() {
	t := suite.T()
	product := testutil.CreateProduct(t, suite.db, "Bracelet", "30.00", 3)
	other := testutil.CreateUser(t, suite.db, "kenny", models.UserRoleCustomer)

	cart, err := suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	cart, err = suite.service.UpdateItem(suite.ctx, suite.user.ID, itemID, &UpdateCartItemRequest{Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	_, err = suite.service.UpdateItem(suite.ctx, suite.user.ID, itemID, &UpdateCartItemRequest{Quantity: 4})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = suite.service.UpdateItem(suite.ctx, other.ID, itemID, &UpdateCartItemRequest{Quantity: 1})
	assert.ErrorIs(t, err, ErrCartItemNotFound)
	_, err = suite.service.RemoveItem(suite.ctx, other.ID, itemID)
	assert.ErrorIs(t, err, ErrCartItemNotFound)

	cart, err = suite.service.RemoveItem(suite.ctx, suite.user.ID, itemID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Subtotal.IsZero())
	assert.False(t, cart.Purchasable)
}

func (suite *CartServiceTestSuite) TestStockDropMakesLineUnpurchasable() {
	t := suite.T()
	product := testutil.CreateProduct(t, suite.db, "Brooch", "15.00", 4)

	_, err := suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{ProductID: product.ID, Quantity: 3})
	require.NoError(t, err)
	require.NoError(t, suite.db.Model(product).Update("stock", 1).Error)

	cart, err := suite.service.GetCart(suite.ctx, suite.user.ID)
	require.NoError(t, err)
	assert.False(t, cart.Items[0].Purchasable)
	assert.Equal(t, 1, cart.Items[0].Available)
	assert.False(t, cart.Purchasable)

	_, err = suite.service.Checkout(suite.ctx, suite.user.ID, &CheckoutRequest{
		ShippingAddress: testutil.ShippingAddress(),
		PaymentMethod:   models.PaymentMethodCard,
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	cart, err = suite.service.GetCart(suite.ctx, suite.user.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1, "failed checkout keeps the cart")
	assert.Equal(t, 1, testutil.Stock(t, suite.db, product.ID))
}

func (suite *CartServiceTestSuite) TestPreviewAndCheckout() {
	t := suite.T()
	ring := testutil.CreateProduct(t, suite.db, "Ring", "20.00", 5)
	chain := testutil.CreateProduct(t, suite.db, "Chain", "12.50", 5)
	address := testutil.CreateAddress(t, suite.db, suite.user.ID, true)

	_, err := suite.service.Preview(suite.ctx, suite.user.ID)
	assert.ErrorIs(t, err, ErrCartEmpty)
	_, err = suite.service.Checkout(suite.ctx, suite.user.ID, &CheckoutRequest{AddressID: &address.ID, PaymentMethod: models.PaymentMethodCard})
	assert.ErrorIs(t, err, ErrCartEmpty)

	_, err = suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{ProductID: ring.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = suite.service.AddItem(suite.ctx, suite.user.ID, &AddCartItemRequest{ProductID: chain.ID, Quantity: 2})
	require.NoError(t, err)

	preview, err := suite.service.Preview(suite.ctx, suite.user.ID)
	require.NoError(t, err)
	require.NotNil(t, preview.DefaultAddress)
	assert.Equal(t, address.ID, preview.DefaultAddress.ID)
	assert.True(t, decimal.RequireFromString("45").Equal(preview.Cart.Subtotal))
	assert.Contains(t, preview.PaymentMethods, "COD")

	order, err := suite.service.Checkout(suite.ctx, suite.user.ID, &CheckoutRequest{
		AddressID:     &address.ID,
		PaymentMethod: models.PaymentMethodCard,
		Notes:         "gift wrap please",
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("45").Equal(order.Total))
	assert.Len(t, order.Items, 2)
	assert.Equal(t, "gift wrap please", order.Notes)
	assert.Equal(t, 4, testutil.Stock(t, suite.db, ring.ID))
	assert.Equal(t, 3, testutil.Stock(t, suite.db, chain.ID))

	cart, err := suite.service.GetCart(suite.ctx, suite.user.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCartServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CartServiceTestSuite))
}
