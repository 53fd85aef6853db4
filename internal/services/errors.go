// internal/services/errors.go
package services

import "errors"

var (
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrOrderNotFound          = errors.New("order not found")
	ErrForbidden              = errors.New("forbidden")
	ErrOrderNotCancellable    = errors.New("order cannot be cancelled in current state")
	ErrReturnNotAllowed       = errors.New("returns are only possible for delivered orders")
	ErrReturnNotFound         = errors.New("return request not found")
	ErrReturnAlreadyProcessed = errors.New("return request was already processed")
	ErrInvalidStatus          = errors.New("unknown order status")
	ErrInvalidTransition      = errors.New("order status transition not allowed")
	ErrEmptyOrder             = errors.New("order must contain at least one item")
	ErrInvalidQuantity        = errors.New("invalid item quantity")
	ErrInvalidPaymentMethod   = errors.New("invalid payment method")
	ErrShippingAddressMissing = errors.New("shipping address is required")
	ErrOrderConflict          = errors.New("order was modified concurrently")

	ErrProductNotFound      = errors.New("product not found")
	ErrProductInactive      = errors.New("product is not available")
	ErrVariantNotFound      = errors.New("variant not found")
	ErrInvalidPrice         = errors.New("price must be greater than zero")
	ErrImageNotFound        = errors.New("image not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrCategoryInUse        = errors.New("category still has products")
	ErrCategoryExists       = errors.New("category already exists")
	ErrAddressNotFound      = errors.New("address not found")
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrCartEmpty            = errors.New("cart is empty")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user with this email or username already exists")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrAccountHasOrders     = errors.New("cannot delete account with open orders")
	ErrInvalidLogin         = errors.New("invalid email or password")
	ErrAccountSuspended     = errors.New("account is suspended")
	ErrInvalidRole          = errors.New("invalid role")
	ErrPaymentDeclined      = errors.New("payment declined")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidUploadFile    = errors.New("invalid upload file")
)
