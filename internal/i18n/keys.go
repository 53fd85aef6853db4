// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess     = "success"
	KeyError       = "error"
	KeyRateLimited = "rate_limited"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthLogoutSuccess      = "auth.logout_success"
	KeyAuthRegisterSuccess    = "auth.register_success"

	// User Management
	KeyUserProfileUpdated = "user.profile_updated"
	KeyUserNotFound       = "user.not_found"
	KeyUserSuspended      = "user.suspended"
	KeyUserUpdated        = "user.updated"

	// Addresses
	KeyAddressCreated  = "address.created"
	KeyAddressUpdated  = "address.updated"
	KeyAddressDeleted  = "address.deleted"
	KeyAddressNotFound = "address.not_found"

	// Catalog
	KeyCategoryCreated  = "category.created"
	KeyCategoryUpdated  = "category.updated"
	KeyCategoryDeleted  = "category.deleted"
	KeyCategoryNotFound = "category.not_found"
	KeyCategoryInUse    = "category.in_use"

	KeyProductCreated    = "product.created"
	KeyProductUpdated    = "product.updated"
	KeyProductDeleted    = "product.deleted"
	KeyProductNotFound   = "product.not_found"
	KeyProductOutOfStock = "product.out_of_stock"
	KeyProductImported   = "product.imported"
	KeyVariantNotFound   = "variant.not_found"
	KeyImageNotFound     = "image.not_found"

	// Cart
	KeyCartItemAdded    = "cart.item_added"
	KeyCartItemUpdated  = "cart.item_updated"
	KeyCartItemRemoved  = "cart.item_removed"
	KeyCartCleared      = "cart.cleared"
	KeyCartEmpty        = "cart.empty"
	KeyCartItemNotFound = "cart.item_not_found"

	// Orders
	KeyOrderPlaced            = "order.placed"
	KeyOrderNotFound          = "order.not_found"
	KeyOrderForbidden         = "order.forbidden"
	KeyOrderCancelled         = "order.cancelled"
	KeyOrderNotCancellable    = "order.not_cancellable"
	KeyOrderInsufficientStock = "order.insufficient_stock"
	KeyOrderStatusUpdated     = "order.status_updated"
	KeyOrderInvalidStatus     = "order.invalid_status"
	KeyOrderInvalidTransition = "order.invalid_transition"
	KeyOrderDeleted           = "order.deleted"
	KeyOrderEmpty             = "order.empty"
	KeyReturnRequested        = "return.requested"
	KeyReturnNotAllowed       = "return.not_allowed"
	KeyReturnProcessed        = "return.processed"
	KeyReturnNotFound         = "return.not_found"
	KeyReturnAlreadyProcessed = "return.already_processed"

	// Payments
	KeyPaymentFailed         = "payment.failed"
	KeyPaymentMethodRequired = "payment.method_required"

	// Admin
	KeyAdminAccessDenied = "admin.access_denied"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// File Upload
	KeyFileUploadSuccess = "file.upload_success"
	KeyFileUploadFailed  = "file.upload_failed"
	KeyFileInvalidType   = "file.invalid_type"
)
