package shipstation

import (
	"encoding/json"

	"github.com/ordersplit/backend/internal/domain/fulfillment"
)

// ListOrdersResponse is the body returned by an order resource URL.
// Orders stay raw so that each one decodes on its own.
type ListOrdersResponse struct {
	Orders []json.RawMessage `json:"orders"`
	Total  int               `json:"total"`
	Page   int               `json:"page"`
	Pages  int               `json:"pages"`
}

// CreateOrdersResponse is the body returned by POST /orders/createorders
type CreateOrdersResponse struct {
	HasErrors bool                `json:"hasErrors"`
	Results   []CreateOrderResult `json:"results"`
}

// CreateOrderResult is the outcome for one record of a createorders call
type CreateOrderResult struct {
	OrderID      int64   `json:"orderId"`
	OrderNumber  string  `json:"orderNumber"`
	OrderKey     string  `json:"orderKey"`
	Success      bool    `json:"success"`
	ErrorMessage *string `json:"errorMessage"`
}

// ErrorResponse is the body ShipStation sends with most 4xx/5xx replies
type ErrorResponse struct {
	Message          string `json:"Message"`
	ExceptionMessage string `json:"ExceptionMessage"`
}

func (r *CreateOrdersResponse) toDomain() *fulfillment.SubmitResult {
	result := &fulfillment.SubmitResult{
		HasErrors: r.HasErrors,
		Results:   make([]fulfillment.SubmitOutcome, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		outcome := fulfillment.SubmitOutcome{
			OrderID:     res.OrderID,
			OrderNumber: res.OrderNumber,
			OrderKey:    res.OrderKey,
			Success:     res.Success,
		}
		if res.ErrorMessage != nil {
			outcome.ErrorMessage = *res.ErrorMessage
		}
		result.Results = append(result.Results, outcome)
	}
	return result
}
