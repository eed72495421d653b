package fulfillment

import "context"

// ResourceBatch is the set of orders referenced by one webhook notification
type ResourceBatch struct {
	// Orders in the order the platform returned them
	Orders []*Order
	// Total is the platform-reported total, if any
	Total int
	// Page is the page number of this batch
	Page int
	// Pages is the number of pages available
	Pages int
	// Rejected are entries of the response that could not be decoded
	Rejected []RejectedOrder
}

// Size returns the number of entries the platform returned, decoded or not
func (b *ResourceBatch) Size() int {
	return len(b.Orders) + len(b.Rejected)
}

// RejectedOrder is a response entry that is not a usable order.
// Err wraps ErrMalformedOrder.
type RejectedOrder struct {
	// Position is the entry's index in the platform response
	Position int
	// OrderNumber is best effort and empty when the entry carried none
	OrderNumber string
	Err         error
}

// SubmitOutcome is the platform's verdict on one submitted record
type SubmitOutcome struct {
	OrderID      int64
	OrderNumber  string
	OrderKey     string
	Success      bool
	ErrorMessage string
}

// SubmitResult is the response to one SubmitOrders call
type SubmitResult struct {
	HasErrors bool
	Results   []SubmitOutcome
}

// FailedRecords returns the outcomes the platform rejected
func (r *SubmitResult) FailedRecords() []SubmitOutcome {
	failed := make([]SubmitOutcome, 0)
	for _, outcome := range r.Results {
		if !outcome.Success {
			failed = append(failed, outcome)
		}
	}
	return failed
}

// Gateway is the port to the order-management platform.
// Implementations live in the infrastructure layer.
type Gateway interface {
	// FetchResource retrieves the orders referenced by a webhook resource URL
	FetchResource(ctx context.Context, resourceURL string) (*ResourceBatch, error)

	// SubmitOrders creates or updates the given records in one call.
	// A batch is always the complete split output of a single order.
	SubmitOrders(ctx context.Context, records []*Order) (*SubmitResult, error)
}
