// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gitsubas/blingblingstore-sub000/internal/i18n"
	"github.com/gitsubas/blingblingstore-sub000/internal/services"
	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

type errorMapping struct {
	target error
	status int
	code   string
	// key is an optional translation; without it the error text is returned.
	key string
}

var errorMappings = []errorMapping{
	{services.ErrOrderNotFound, http.StatusNotFound, "NOT_FOUND", i18n.KeyOrderNotFound},
	{services.ErrProductNotFound, http.StatusNotFound, "NOT_FOUND", i18n.KeyProductNotFound},
	{services.ErrVariantNotFound, http.StatusNotFound, "NOT_FOUND", i18n.KeyVariantNotFound},
	{services.ErrImageNotFound, http.StatusNotFound, "NOT_FOUND", i18n.KeyImageNotFound},
	{services.ErrCategoryNotFound, http.StatusNotFound, "NOT_FOUND", i18n.KeyCategoryNotFound},
	{services.ErrAddressNotFound, http.StatusNotFound, "NOT_FOUND", i18n.KeyAddressNotFound},
	{services.ErrCartItemNotFound, http.StatusNotFound, "NOT_FOUND", i18n.KeyCartItemNotFound},
	{services.ErrReturnNotFound, http.StatusNotFound, "NOT_FOUND", i18n.KeyReturnNotFound},
	{services.ErrUserNotFound, http.StatusNotFound, "NOT_FOUND", i18n.KeyUserNotFound},
	{services.ErrNotificationNotFound, http.StatusNotFound, "NOT_FOUND", ""},

	{services.ErrForbidden, http.StatusForbidden, "FORBIDDEN", i18n.KeyOrderForbidden},
	{services.ErrAccountSuspended, http.StatusForbidden, "FORBIDDEN", i18n.KeyUserSuspended},
	{services.ErrInvalidLogin, http.StatusUnauthorized, "UNAUTHORIZED", i18n.KeyAuthInvalidCredentials},

	{services.ErrOrderConflict, http.StatusConflict, "CONFLICT", ""},
	{services.ErrReturnAlreadyProcessed, http.StatusConflict, "CONFLICT", i18n.KeyReturnAlreadyProcessed},
	{services.ErrUserExists, http.StatusConflict, "CONFLICT", i18n.KeyAuthUserExists},
	{services.ErrUsernameTaken, http.StatusConflict, "CONFLICT", ""},
	{services.ErrCategoryExists, http.StatusConflict, "CONFLICT", ""},
	{services.ErrCategoryInUse, http.StatusConflict, "CONFLICT", i18n.KeyCategoryInUse},
	{services.ErrAccountHasOrders, http.StatusConflict, "CONFLICT", ""},

	{services.ErrInsufficientStock, http.StatusBadRequest, "INSUFFICIENT_STOCK", ""},
	{services.ErrOrderNotCancellable, http.StatusBadRequest, "NOT_CANCELLABLE", i18n.KeyOrderNotCancellable},
	{services.ErrReturnNotAllowed, http.StatusBadRequest, "RETURN_NOT_ALLOWED", i18n.KeyReturnNotAllowed},
	{services.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS", i18n.KeyOrderInvalidStatus},
	{services.ErrInvalidTransition, http.StatusBadRequest, "INVALID_TRANSITION", ""},
	{services.ErrInvalidQuantity, http.StatusBadRequest, "INVALID_QUANTITY", ""},
	{services.ErrEmptyOrder, http.StatusBadRequest, "BAD_REQUEST", i18n.KeyOrderEmpty},
	{services.ErrCartEmpty, http.StatusBadRequest, "BAD_REQUEST", i18n.KeyCartEmpty},
	{services.ErrInvalidPaymentMethod, http.StatusBadRequest, "BAD_REQUEST", i18n.KeyPaymentMethodRequired},
	{services.ErrPaymentDeclined, http.StatusBadRequest, "PAYMENT_FAILED", i18n.KeyPaymentFailed},
	{services.ErrShippingAddressMissing, http.StatusBadRequest, "BAD_REQUEST", ""},
	{services.ErrProductInactive, http.StatusBadRequest, "BAD_REQUEST", ""},
	{services.ErrInvalidPrice, http.StatusBadRequest, "BAD_REQUEST", ""},
	{services.ErrInvalidPassword, http.StatusBadRequest, "BAD_REQUEST", ""},
	{services.ErrInvalidRole, http.StatusBadRequest, "BAD_REQUEST", ""},
	{services.ErrInvalidUploadFile, http.StatusBadRequest, "INVALID_FILE", ""},
}

// respondError classifies a service error and writes the matching response.
// Anything unknown is logged and answered with a 500.
func respondError(c *gin.Context, err error) {
	if validationErrors := utils.GetValidationErrors(err); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	lang := utils.GetLangFromContext(c)
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := err.Error()
		if m.key != "" {
			message = i18n.T(lang, m.key)
		}
		utils.ErrorResponse(c, m.status, m.code, message, nil)
		return
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("Request failed")
	utils.InternalErrorResponse(c, "")
}

// errorsIsKnown reports whether respondError has a specific answer for err.
func errorsIsKnown(err error) bool {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return true
		}
	}
	return false
}

// bindJSON decodes and validates the body, answering 400 on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	return userID, true
}

func paramID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		lang := utils.GetLangFromContext(c)
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, label), nil)
		return uuid.Nil, false
	}
	return id, true
}
