package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeCheckoutDetails is used when checkout details are rejected
	ErrCodeCheckoutDetails = "ERR_VALIDATION_CHECKOUT_DETAILS"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeProductUnavailable is used when a product cannot be bought
	ErrCodeProductUnavailable = "ERR_PRODUCT_UNAVAILABLE"
	// ErrCodeEmptyCart is used when paying for an empty cart
	ErrCodeEmptyCart = "ERR_EMPTY_CART"
	// ErrCodeRefreshInProgress is used when a full image refresh is already running
	ErrCodeRefreshInProgress = "ERR_REFRESH_IN_PROGRESS"
	// ErrCodeDuplicateRequest is used when an idempotency key was already used
	ErrCodeDuplicateRequest = "ERR_DUPLICATE_REQUEST"
)

// Upstream error codes
const (
	// ErrCodeWriteFailed is used when the product table rejected a write
	ErrCodeWriteFailed = "ERR_UPSTREAM_WRITE_FAILED"
	// ErrCodeLoadFailed is used when no product source answered
	ErrCodeLoadFailed = "ERR_UPSTREAM_LOAD_FAILED"
	// ErrCodePaymentRejected is used when the gateway refused a payment
	ErrCodePaymentRejected = "ERR_PAYMENT_REJECTED"
	// ErrCodePaymentUnavailable is used when the gateway cannot be reached
	ErrCodePaymentUnavailable = "ERR_PAYMENT_UNAVAILABLE"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodePayloadTooLarge is used when a body or upload exceeds its limit
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
	// ErrCodeRateLimited is used when a client exceeds its request budget
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request, checkout details -> 422
	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeValidationFormat: http.StatusBadRequest,
	ErrCodeCheckoutDetails:  http.StatusUnprocessableEntity,

	// Resource errors
	ErrCodeNotFound: http.StatusNotFound,
	ErrCodeConflict: http.StatusConflict,

	// Business rule errors -> 409 / 422
	ErrCodeInvalidState:       http.StatusConflict,
	ErrCodeBusinessRule:       http.StatusUnprocessableEntity,
	ErrCodeProductUnavailable: http.StatusUnprocessableEntity,
	ErrCodeEmptyCart:          http.StatusUnprocessableEntity,
	ErrCodeRefreshInProgress:  http.StatusConflict,
	ErrCodeDuplicateRequest:   http.StatusConflict,

	// Upstream errors
	ErrCodeWriteFailed:        http.StatusBadGateway,
	ErrCodeLoadFailed:         http.StatusServiceUnavailable,
	ErrCodePaymentRejected:    http.StatusPaymentRequired,
	ErrCodePaymentUnavailable: http.StatusBadGateway,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":           ErrCodeNotFound,
	"PRODUCT_NOT_FOUND":   ErrCodeNotFound,
	"ALREADY_EXISTS":      ErrCodeConflict,
	"INVALID_INPUT":       ErrCodeInvalidInput,
	"INVALID_STATE":       ErrCodeInvalidState,
	"INVALID_NAME":        ErrCodeValidationFormat,
	"INVALID_PRICE":       ErrCodeValidationFormat,
	"INVALID_QUANTITY":    ErrCodeValidationFormat,
	"CART_ID_REQUIRED":    ErrCodeBadRequest,
	"PRODUCT_UNAVAILABLE": ErrCodeProductUnavailable,
	"WRITE_FAILED":        ErrCodeWriteFailed,
	"LOAD_FAILED":         ErrCodeLoadFailed,
	"INVALID_IMAGE_TYPE":  ErrCodeValidationFormat,
	"INVALID_IMAGE_PATH":  ErrCodeValidationFormat,
	"IMAGE_EMPTY":         ErrCodeValidationFormat,
	"IMAGE_TOO_LARGE":     ErrCodePayloadTooLarge,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
