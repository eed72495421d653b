package fulfillment

import "errors"

// ---------------------------------------------------------------------------
// Fulfillment Errors
// ---------------------------------------------------------------------------

var (
	// Order errors
	ErrMalformedOrder = errors.New("fulfillment: malformed order")
	ErrAlreadySplit   = errors.New("fulfillment: order is already split")

	// Gateway errors
	ErrGatewayNotConfigured   = errors.New("fulfillment: gateway not configured")
	ErrGatewayUnavailable     = errors.New("fulfillment: gateway temporarily unavailable")
	ErrGatewayRequestFailed   = errors.New("fulfillment: gateway request failed")
	ErrGatewayInvalidResponse = errors.New("fulfillment: invalid gateway response")
	ErrGatewayAuthFailed      = errors.New("fulfillment: gateway authentication failed")
	ErrGatewayRateLimited     = errors.New("fulfillment: gateway rate limited")
	ErrResourceNotAllowed     = errors.New("fulfillment: resource url not allowed")
	ErrSubmitRejected         = errors.New("fulfillment: order submission rejected")
)

// IsTransient reports whether err is a gateway failure that may succeed if the
// platform redelivers the notification later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrGatewayUnavailable) || errors.Is(err, ErrGatewayRateLimited)
}
