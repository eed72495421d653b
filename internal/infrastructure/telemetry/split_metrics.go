package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ordersplit/backend/internal/domain/fulfillment"
)

// Decision labels the outcome of evaluating one order.
type Decision string

const (
	DecisionUnchanged    Decision = "unchanged"
	DecisionSplit        Decision = "split"
	DecisionNoFamilies   Decision = "no_families"
	DecisionAlreadySplit Decision = "already_split"
)

// Stage labels where an order failed.
type Stage string

const (
	StagePlan   Stage = "plan"
	StageSubmit Stage = "submit"
)

// Metric attribute keys
var (
	AttrDecision = attribute.Key("decision")
	AttrStage    = attribute.Key("stage")
	AttrOutcome  = attribute.Key("outcome")
	AttrReason   = attribute.Key("reason")
)

// SplitMetrics records order split activity. A nil *SplitMetrics is valid and
// records nothing.
type SplitMetrics struct {
	notifications  *Counter
	ordersAnalyzed *Counter
	decisions      *Counter
	recordsSent    *Counter
	orderFailures  *Counter
	fetchFailures  *Counter
	submitDuration *Histogram
}

// NewSplitMetrics creates the split instruments on meter.
func NewSplitMetrics(meter metric.Meter) (*SplitMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &SplitMetrics{}
	counters := []struct {
		dst              **Counter
		name, desc, unit string
	}{
		{&m.notifications, "order_split_notifications_total", "Webhook notifications processed", "{notifications}"},
		{&m.ordersAnalyzed, "order_split_orders_analyzed_total", "Orders fetched for analysis", "{orders}"},
		{&m.decisions, "order_split_decisions_total", "Split decisions by outcome", "{orders}"},
		{&m.recordsSent, "order_split_records_submitted_total", "Order records sent to the platform", "{records}"},
		{&m.orderFailures, "order_split_order_failures_total", "Orders that failed planning or submission", "{orders}"},
		{&m.fetchFailures, "order_split_fetch_failures_total", "Notifications whose resource could not be fetched", "{notifications}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	m.submitDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "order_split_submit_duration_seconds",
		Description: "Duration of one createorders call",
		Unit:        "s",
		Boundaries:  GatewayDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter is nil")

// RecordNotification counts one processed notification and its orders
func (m *SplitMetrics) RecordNotification(ctx context.Context, orders int) {
	if m == nil {
		return
	}
	m.notifications.Inc(ctx)
	m.ordersAnalyzed.Add(ctx, int64(orders))
}

// RecordFetchFailure counts a notification whose resource could not be fetched
func (m *SplitMetrics) RecordFetchFailure(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.fetchFailures.Inc(ctx, AttrReason.String(errorReason(err)))
}

// RecordDecision counts one order decision
func (m *SplitMetrics) RecordDecision(ctx context.Context, d Decision) {
	if m == nil {
		return
	}
	m.decisions.Inc(ctx, AttrDecision.String(string(d)))
}

// RecordOrderFailure counts an order that failed at stage
func (m *SplitMetrics) RecordOrderFailure(ctx context.Context, stage Stage) {
	if m == nil {
		return
	}
	m.orderFailures.Inc(ctx, AttrStage.String(string(stage)))
}

// RecordSubmission records one createorders call
func (m *SplitMetrics) RecordSubmission(ctx context.Context, records int, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
		m.orderFailures.Inc(ctx, AttrStage.String(string(StageSubmit)), AttrReason.String(errorReason(err)))
	} else {
		m.recordsSent.Add(ctx, int64(records))
	}
	m.submitDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}

// errorReason maps a gateway error to a low-cardinality label
func errorReason(err error) string {
	switch {
	case errors.Is(err, fulfillment.ErrGatewayAuthFailed):
		return "auth"
	case errors.Is(err, fulfillment.ErrGatewayRateLimited):
		return "rate_limited"
	case errors.Is(err, fulfillment.ErrGatewayUnavailable):
		return "unavailable"
	case errors.Is(err, fulfillment.ErrGatewayInvalidResponse):
		return "invalid_response"
	case errors.Is(err, fulfillment.ErrResourceNotAllowed):
		return "resource_not_allowed"
	case errors.Is(err, fulfillment.ErrSubmitRejected):
		return "rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "request_failed"
	}
}
