// Package handler implements the storefront HTTP API.
package handler

import (
	"errors"
	"net/http"

	imagingapp "github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/imaging"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/checkout"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/logger"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/dto"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// sentinelCodes maps errors that are not DomainErrors to API codes
var sentinelCodes = []struct {
	err     error
	code    string
	message string
}{
	{catalog.ErrProductNotFound, dto.ErrCodeNotFound, "Product not found"},
	{checkout.ErrSessionNotFound, dto.ErrCodeNotFound, "Checkout session not found"},
	{checkout.ErrSessionClosed, dto.ErrCodeInvalidState, "Checkout session is closed"},
	{checkout.ErrInvalidTransition, dto.ErrCodeInvalidState, "Action not allowed in the current checkout step"},
	{checkout.ErrEmptyCart, dto.ErrCodeEmptyCart, "Cart is empty"},
	{checkout.ErrPaymentRejected, dto.ErrCodePaymentRejected, checkout.MsgInitiateFailed},
	{checkout.ErrGatewayNotConfigured, dto.ErrCodePaymentUnavailable, "Mobile money payments are not available"},
	{checkout.ErrGatewayUnavailable, dto.ErrCodePaymentUnavailable, "Payment service is temporarily unavailable"},
	{checkout.ErrGatewayRequestFailed, dto.ErrCodePaymentUnavailable, "Payment service is temporarily unavailable"},
	{checkout.ErrGatewayInvalidResponse, dto.ErrCodePaymentUnavailable, "Payment service returned an invalid response"},
	{imagingapp.ErrRefreshInProgress, dto.ErrCodeRefreshInProgress, "An image refresh is already running"},
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, logger.GetGinRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindJSON binds the request body and writes the validation response on failure
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.BindError(c, err)
		return false
	}
	return true
}

// BindError writes the response for a failed bind
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError is a generic error handler that handles both domain and standard errors
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			h.ErrorWithCode(c, s.code, s.message)
			return
		}
	}

	// Check for domain error using errors.As for wrapped error support
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.ErrorWithCode(c, code, domainErr.Message)
		return
	}

	logger.GetGinLogger(c).Error("Unhandled request error", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}

// parseID reads a UUID path parameter, answering 400 when it is malformed
func (h *BaseHandler) parseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		h.BadRequest(c, "Invalid "+param+" format")
		return uuid.Nil, false
	}
	return id, true
}
