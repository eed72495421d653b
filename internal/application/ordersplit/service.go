package ordersplit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ordersplit/backend/internal/domain/fulfillment"
	"github.com/ordersplit/backend/internal/infrastructure/logger"
	"github.com/ordersplit/backend/internal/infrastructure/telemetry"
)

// ErrServiceClosed is returned once Shutdown has been called
var ErrServiceClosed = errors.New("ordersplit: service is shutting down")

// DefaultMaxConcurrency is the worker pool size used when none is configured
const DefaultMaxConcurrency = 4

// Config holds the split service settings
type Config struct {
	// MaxConcurrency bounds the number of orders submitted in parallel
	MaxConcurrency int
	// AsyncSubmit submits split records after the webhook has been answered
	AsyncSubmit bool
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the split metrics recorder
func WithMetrics(m *telemetry.SplitMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithReportHook registers a callback invoked after every submitted batch
func WithReportHook(fn func(*BatchReport)) Option {
	return func(s *Service) {
		s.onReport = fn
	}
}

// Service turns order webhook notifications into split submissions
type Service struct {
	gateway  fulfillment.Gateway
	config   Config
	logger   *zap.Logger
	metrics  *telemetry.SplitMetrics
	onReport func(*BatchReport)

	// background batches
	wg       sync.WaitGroup
	inFlight atomic.Int64
	stopCtx  context.Context
	stop     context.CancelFunc
	mu       sync.RWMutex
	closed   bool
}

// NewService creates a new split service. A nil gateway is allowed; every
// notification then fails with fulfillment.ErrGatewayNotConfigured.
func NewService(gateway fulfillment.Gateway, cfg Config, opts ...Option) *Service {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	stopCtx, stop := context.WithCancel(context.Background())
	s := &Service{
		gateway: gateway,
		config:  cfg,
		logger:  zap.NewNop(),
		stopCtx: stopCtx,
		stop:    stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GatewayConfigured returns true if the service can reach the platform
func (s *Service) GatewayConfigured() bool {
	return s.gateway != nil
}

// InFlight returns the number of background batches still being submitted
func (s *Service) InFlight() int64 {
	return s.inFlight.Load()
}

// ---------------------------------------------------------------------------
// Notification Handling
// ---------------------------------------------------------------------------

// HandleNotification fetches the orders referenced by resourceURL, decides
// which of them need splitting and submits their split records. Gateway
// failures while fetching abort the notification; failures on a single order
// are recorded in the batch report and do not affect the other orders.
func (s *Service) HandleNotification(ctx context.Context, resourceURL string) (*NotificationResult, error) {
	if s.gateway == nil {
		return nil, fulfillment.ErrGatewayNotConfigured
	}
	if s.isClosed() {
		return nil, ErrServiceClosed
	}

	batchID := uuid.New()
	ctx, span := telemetry.StartServiceSpan(ctx, "order_split", "handle_notification",
		telemetry.WithAttribute(telemetry.SpanAttrBatchID, batchID.String()),
	)
	defer span.End()

	log := logger.WithLogger(ctx, s.logger).With(zap.String("batch_id", batchID.String()))

	batch, err := s.gateway.FetchResource(ctx, resourceURL)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordFetchFailure(ctx, err)
		log.Error("Failed to fetch notification resource", zap.Error(err))
		return nil, fmt.Errorf("fetch resource: %w", err)
	}

	report := &BatchReport{
		BatchID:  batchID,
		Outcomes: make([]OrderOutcome, batch.Size()),
	}
	pending := s.planBatch(ctx, batch.Orders, report)
	s.recordRejected(ctx, batch.Rejected, report)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderCount, batch.Size(),
		telemetry.SpanAttrQueuedCount, len(pending),
	)
	s.metrics.RecordNotification(ctx, batch.Size())

	log.Info("Analyzed order notification",
		zap.Int("orders", batch.Size()),
		zap.Int("rejected", len(batch.Rejected)),
		zap.Int("queued", len(pending)),
		zap.Bool("async", s.config.AsyncSubmit),
	)

	result := &NotificationResult{
		BatchID:  batchID,
		Message:  analyzedMessage(batch.Size()),
		Analyzed: batch.Size(),
		Queued:   len(pending),
		Orders:   batch.Orders,
	}

	if len(pending) == 0 {
		report.tally()
		result.Report = report
		return result, nil
	}

	if s.config.AsyncSubmit {
		if err := s.dispatch(ctx, report, pending); err != nil {
			return nil, err
		}
		return result, nil
	}

	s.submitBatch(ctx, report, pending)
	result.Report = report
	return result, nil
}

// Preview evaluates one order without submitting anything
func (s *Service) Preview(ctx context.Context, order *fulfillment.Order) (*fulfillment.SplitPlan, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_split", "preview")
	defer span.End()

	plan, err := fulfillment.Plan(order)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderNumber, plan.OrderNumber,
		telemetry.SpanAttrNeedsSplit, plan.NeedsSplit,
	)
	logger.WithLogger(ctx, s.logger).Debug("Previewed order split",
		zap.String("order_number", plan.OrderNumber),
		zap.Strings("group", plan.Group.Strings()),
		zap.Bool("needs_split", plan.NeedsSplit),
		zap.Int("records", len(plan.Records)),
	)
	return plan, nil
}

// planBatch evaluates every order and returns the ones with records to submit.
// Already-split orders never reach the decision engine.
func (s *Service) planBatch(ctx context.Context, orders []*fulfillment.Order, report *BatchReport) []pendingOrder {
	log := logger.WithLogger(ctx, s.logger).With(zap.String("batch_id", report.BatchID.String()))
	pending := make([]pendingOrder, 0, len(orders))

	for i, order := range orders {
		outcome := &report.Outcomes[i]
		if order == nil {
			outcome.Status = OrderStatusFailed
			outcome.Error = fulfillment.ErrMalformedOrder.Error()
			s.metrics.RecordOrderFailure(ctx, telemetry.StagePlan)
			continue
		}
		outcome.OrderNumber = order.OrderNumber

		if order.IsAlreadySplit() {
			outcome.Status = OrderStatusAlreadySplit
			s.metrics.RecordDecision(ctx, telemetry.DecisionAlreadySplit)
			continue
		}

		plan, err := fulfillment.Plan(order)
		if err != nil {
			outcome.Status = OrderStatusFailed
			outcome.Error = err.Error()
			s.metrics.RecordOrderFailure(ctx, telemetry.StagePlan)
			log.Error("Failed to evaluate order",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
			continue
		}

		outcome.Families = familyStrings(plan.Families)
		switch {
		case !plan.NeedsSplit:
			outcome.Status = OrderStatusUnchanged
			s.metrics.RecordDecision(ctx, telemetry.DecisionUnchanged)
		case !plan.ShouldSubmit():
			outcome.Status = OrderStatusNoFamilies
			s.metrics.RecordDecision(ctx, telemetry.DecisionNoFamilies)
		default:
			outcome.Status = OrderStatusQueued
			outcome.Records = len(plan.Records)
			s.metrics.RecordDecision(ctx, telemetry.DecisionSplit)
			pending = append(pending, pendingOrder{index: i, plan: plan})
		}

		log.Debug("Evaluated order",
			zap.String("order_number", order.OrderNumber),
			zap.Strings("group", plan.Group.Strings()),
			zap.String("status", string(outcome.Status)),
		)
	}
	return pending
}

// recordRejected fills the outcomes after the decoded orders with the entries
// the gateway could not decode.
func (s *Service) recordRejected(ctx context.Context, rejected []fulfillment.RejectedOrder, report *BatchReport) {
	if len(rejected) == 0 {
		return
	}
	log := logger.WithLogger(ctx, s.logger).With(zap.String("batch_id", report.BatchID.String()))
	offset := len(report.Outcomes) - len(rejected)

	for i, r := range rejected {
		outcome := &report.Outcomes[offset+i]
		outcome.OrderNumber = r.OrderNumber
		outcome.Status = OrderStatusFailed
		outcome.Error = fulfillment.ErrMalformedOrder.Error()
		if r.Err != nil {
			outcome.Error = r.Err.Error()
		}
		s.metrics.RecordOrderFailure(ctx, telemetry.StagePlan)
		log.Error("Skipping undecodable order",
			zap.String("order_number", r.OrderNumber),
			zap.Int("position", r.Position),
			zap.Error(r.Err),
		)
	}
}

// ---------------------------------------------------------------------------
// Submission
// ---------------------------------------------------------------------------

// dispatch submits pending orders in the background. The work keeps the
// request's values (logger, trace) but not its cancellation.
func (s *Service) dispatch(ctx context.Context, report *BatchReport, pending []pendingOrder) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrServiceClosed
	}

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopAfter := context.AfterFunc(s.stopCtx, cancel)

	s.wg.Add(1)
	s.inFlight.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Add(-1)
		defer cancel()
		defer stopAfter()

		s.submitBatch(bgCtx, report, pending)
	}()
	return nil
}

// submitBatch runs one SubmitOrders call per order on a bounded worker pool.
// Workers never return an error so one failing order cannot stop the rest.
func (s *Service) submitBatch(ctx context.Context, report *BatchReport, pending []pendingOrder) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_split", "submit_batch",
		telemetry.WithAttribute(telemetry.SpanAttrBatchID, report.BatchID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrQueuedCount, len(pending)),
	)
	defer span.End()

	var g errgroup.Group
	g.SetLimit(s.config.MaxConcurrency)
	for _, p := range pending {
		g.Go(func() error {
			report.Outcomes[p.index] = s.submitOrder(ctx, p.plan)
			return nil
		})
	}
	_ = g.Wait()

	report.tally()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSubmittedCount, report.Submitted,
		telemetry.SpanAttrFailedCount, report.Failed,
	)

	log := logger.WithLogger(ctx, s.logger).With(zap.String("batch_id", report.BatchID.String()))
	if report.Failed > 0 {
		log.Warn("Order split batch finished with failures",
			zap.Int("submitted", report.Submitted),
			zap.Int("failed", report.Failed),
		)
	} else {
		log.Info("Order split batch submitted", zap.Int("submitted", report.Submitted))
	}

	if s.onReport != nil {
		s.onReport(report)
	}
}

// submitOrder sends one order's complete split output in a single call
func (s *Service) submitOrder(ctx context.Context, plan *fulfillment.SplitPlan) OrderOutcome {
	ctx, span := telemetry.StartServiceSpan(ctx, "order_split", "submit_order",
		telemetry.WithAttribute(telemetry.SpanAttrOrderNumber, plan.OrderNumber),
		telemetry.WithAttribute(telemetry.SpanAttrRecordCount, len(plan.Records)),
	)
	defer span.End()

	outcome := OrderOutcome{
		OrderNumber: plan.OrderNumber,
		Families:    familyStrings(plan.Families),
		Records:     len(plan.Records),
	}
	log := logger.WithLogger(ctx, s.logger).With(zap.String("order_number", plan.OrderNumber))

	start := time.Now()
	result, err := s.gateway.SubmitOrders(ctx, plan.Records)
	if err == nil && result.HasErrors {
		err = rejectionError(result)
	}
	s.metrics.RecordSubmission(ctx, len(plan.Records), time.Since(start), err)

	if err != nil {
		telemetry.RecordError(span, err)
		outcome.Status = OrderStatusFailed
		outcome.Error = err.Error()
		log.Error("Failed to submit split order",
			zap.Strings("families", outcome.Families),
			zap.Bool("transient", fulfillment.IsTransient(err)),
			zap.Error(err),
		)
		return outcome
	}

	outcome.Status = OrderStatusSubmitted
	log.Info("Submitted split order",
		zap.Strings("families", outcome.Families),
		zap.Int("records", outcome.Records),
	)
	return outcome
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Shutdown stops accepting notifications and waits for background batches.
// If ctx expires first, outstanding submissions are canceled.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.stop()
		return nil
	case <-ctx.Done():
		s.stop()
		<-done
		return ctx.Err()
	}
}

func (s *Service) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func familyStrings(tags []fulfillment.FamilyTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// rejectionError summarizes the records the platform refused
func rejectionError(result *fulfillment.SubmitResult) error {
	failed := result.FailedRecords()
	if len(failed) == 0 {
		return fulfillment.ErrSubmitRejected
	}
	msgs := make([]string, 0, len(failed))
	for _, f := range failed {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f.OrderNumber, f.ErrorMessage))
	}
	return fmt.Errorf("%w: %s", fulfillment.ErrSubmitRejected, strings.Join(msgs, "; "))
}
