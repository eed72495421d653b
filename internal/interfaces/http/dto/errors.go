package dto

import (
	"errors"
	"net/http"

	"github.com/ordersplit/backend/internal/domain/fulfillment"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown            = "ERR_UNKNOWN"
	ErrCodeInternal           = "ERR_INTERNAL"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
)

// Input error codes
const (
	ErrCodeValidation     = "ERR_VALIDATION"
	ErrCodeBadRequest     = "ERR_BAD_REQUEST"
	ErrCodeInvalidJSON    = "ERR_INVALID_JSON"
	ErrCodeMalformedOrder = "ERR_MALFORMED_ORDER"
	ErrCodeAlreadySplit   = "ERR_ALREADY_SPLIT"
	ErrCodeResourceDenied = "ERR_RESOURCE_NOT_ALLOWED"
	ErrCodeBodyTooLarge   = "ERR_REQUEST_TOO_LARGE"
)

// Upstream platform error codes
const (
	ErrCodeGatewayNotConfigured   = "ERR_GATEWAY_NOT_CONFIGURED"
	ErrCodeGatewayUnavailable     = "ERR_GATEWAY_UNAVAILABLE"
	ErrCodeGatewayRequestFailed   = "ERR_GATEWAY_REQUEST_FAILED"
	ErrCodeGatewayInvalidResponse = "ERR_GATEWAY_INVALID_RESPONSE"
	ErrCodeGatewayAuthFailed      = "ERR_GATEWAY_AUTH_FAILED"
	ErrCodeRateLimited            = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:            http.StatusInternalServerError,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:     http.StatusBadRequest,
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeInvalidJSON:    http.StatusBadRequest,
	ErrCodeMalformedOrder: http.StatusBadRequest,
	ErrCodeResourceDenied: http.StatusBadRequest,
	ErrCodeBodyTooLarge:   http.StatusRequestEntityTooLarge,

	// already-split orders are valid input the engine refuses to evaluate
	ErrCodeAlreadySplit: http.StatusUnprocessableEntity,

	// upstream failures surface as bad gateway, never as the caller's fault
	ErrCodeGatewayNotConfigured:   http.StatusServiceUnavailable,
	ErrCodeGatewayUnavailable:     http.StatusBadGateway,
	ErrCodeGatewayRequestFailed:   http.StatusBadGateway,
	ErrCodeGatewayInvalidResponse: http.StatusBadGateway,
	ErrCodeGatewayAuthFailed:      http.StatusBadGateway,
	ErrCodeRateLimited:            http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodes is checked in order; the first sentinel found in the chain wins
var domainErrorCodes = []struct {
	err  error
	code string
}{
	{fulfillment.ErrMalformedOrder, ErrCodeMalformedOrder},
	{fulfillment.ErrAlreadySplit, ErrCodeAlreadySplit},
	{fulfillment.ErrResourceNotAllowed, ErrCodeResourceDenied},
	{fulfillment.ErrGatewayNotConfigured, ErrCodeGatewayNotConfigured},
	{fulfillment.ErrGatewayRateLimited, ErrCodeRateLimited},
	{fulfillment.ErrGatewayAuthFailed, ErrCodeGatewayAuthFailed},
	{fulfillment.ErrGatewayUnavailable, ErrCodeGatewayUnavailable},
	{fulfillment.ErrGatewayInvalidResponse, ErrCodeGatewayInvalidResponse},
	{fulfillment.ErrGatewayRequestFailed, ErrCodeGatewayRequestFailed},
}

// ErrorCodeFor maps a domain error to its API error code.
// ok is false for errors outside the domain taxonomy.
func ErrorCodeFor(err error) (code string, ok bool) {
	for _, m := range domainErrorCodes {
		if errors.Is(err, m.err) {
			return m.code, true
		}
	}
	return ErrCodeInternal, false
}
