package ordersplit

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ordersplit/backend/internal/domain/fulfillment"
)

// OrderStatus is the processing outcome of one order in a notification batch
type OrderStatus string

const (
	// OrderStatusUnchanged means the order ships as is
	OrderStatusUnchanged OrderStatus = "unchanged"
	// OrderStatusAlreadySplit means the order is the product of an earlier split
	OrderStatusAlreadySplit OrderStatus = "already_split"
	// OrderStatusNoFamilies means a split was required but no core family was present
	OrderStatusNoFamilies OrderStatus = "no_families"
	// OrderStatusQueued means the split records are waiting for submission
	OrderStatusQueued OrderStatus = "queued"
	// OrderStatusSubmitted means the split records were accepted by the platform
	OrderStatusSubmitted OrderStatus = "submitted"
	// OrderStatusFailed means planning or submission failed
	OrderStatusFailed OrderStatus = "failed"
)

// IsTerminal returns true if no further work is pending for the order
func (s OrderStatus) IsTerminal() bool {
	return s != OrderStatusQueued
}

// OrderOutcome records what happened to one order
type OrderOutcome struct {
	OrderNumber string      `json:"order_number"`
	Status      OrderStatus `json:"status"`
	Families    []string    `json:"families,omitempty"`
	Records     int         `json:"records"`
	Error       string      `json:"error,omitempty"`
}

// BatchReport summarizes one notification batch
type BatchReport struct {
	BatchID   uuid.UUID      `json:"batch_id"`
	Outcomes  []OrderOutcome `json:"outcomes"`
	Submitted int            `json:"submitted"`
	Failed    int            `json:"failed"`
}

func (r *BatchReport) tally() {
	r.Submitted, r.Failed = 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case OrderStatusSubmitted:
			r.Submitted++
		case OrderStatusFailed:
			r.Failed++
		}
	}
}

// NotificationResult is returned to the webhook caller
type NotificationResult struct {
	BatchID uuid.UUID `json:"batch_id"`
	// Message is the human readable summary
	Message string `json:"message"`
	// Analyzed is the number of orders fetched for the notification
	Analyzed int `json:"analyzed"`
	// Queued is the number of orders whose split records are being submitted
	Queued int `json:"queued"`
	// Orders are the fetched orders, before any split
	Orders []*fulfillment.Order `json:"orders"`
	// Report is only set when submission ran inline
	Report *BatchReport `json:"report,omitempty"`
}

func analyzedMessage(n int) string {
	return fmt.Sprintf("Analyzed %d new order(s).", n)
}

// pendingOrder is an order whose split records still need submitting
type pendingOrder struct {
	index int
	plan  *fulfillment.SplitPlan
}
