// Package audit is the audit logging engine: it builds entries, batches
// them, persists them to the primary store and routes anything the store
// cannot take to the fallback files.
package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	audit "auditlog/pkg/platform/audit"
	"auditlog/pkg/platform/audit/accumulator"
	"auditlog/pkg/platform/circuit"
)

// Fallback reasons recorded on every fallback line.
const (
	ReasonBackendUnavailable = "backend unavailable"
	ReasonPipelineFailed     = "pipeline failed"
	ReasonCircuitOpen        = "circuit open"
	ReasonClosed             = "engine closed"
)

var tracer = otel.Tracer("auditlog/internal/audit")

// Store is the primary sorted-set store.
type Store interface {
	Write(ctx context.Context, batch []audit.Entry) error
	Query(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
	Cleanup(ctx context.Context, daysToKeep int) (int, error)
	CountLast24h(ctx context.Context) (int64, error)
	Available() bool
}

// Fallback receives batches the primary store could not take. It never fails
// from the caller's point of view.
type Fallback interface {
	Write(ctx context.Context, batch []audit.Entry, reason string)
	Written() int64
	Failures() int64
}

// Service is the public face of the engine. All methods are safe for
// concurrent use and none of them return store errors to the caller: failures
// are logged, counted and, for writes, sent to the fallback.
type Service struct {
	factory  *audit.Factory
	store    Store
	fallback Fallback
	breaker  *circuit.Breaker
	acc      *accumulator.Accumulator
	logger   *slog.Logger
	metrics  *Metrics

	batchSize    int
	batchTimeout time.Duration

	totalLogged     atomic.Int64
	totalFailed     atomic.Int64
	backendFailures atomic.Int64
	flushes         atomic.Int64
	lastWriteFailed atomic.Bool
	closed          atomic.Bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBreaker replaces the default primary-store circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		if b != nil {
			s.breaker = b
		}
	}
}

func WithBatchSize(n int) Option {
	return func(s *Service) {
		s.batchSize = n
	}
}

func WithBatchTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.batchTimeout = d
	}
}

// New constructs a Service. The store client and fallback directory are
// owned by the caller; Close drains the queue but releases neither.
func New(factory *audit.Factory, store Store, fallback Fallback, opts ...Option) *Service {
	s := &Service{
		factory:      factory,
		store:        store,
		fallback:     fallback,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		batchSize:    accumulator.DefaultBatchSize,
		batchTimeout: accumulator.DefaultBatchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		// One successful probe after the cooldown is enough to close.
		s.breaker = circuit.New("audit-store", circuit.WithSuccessThreshold(1))
	}
	s.acc = accumulator.New(s,
		accumulator.WithBatchSize(s.batchSize),
		accumulator.WithBatchTimeout(s.batchTimeout),
		accumulator.WithLogger(s.logger),
	)
	return s
}

// Log records one operation. It returns true once the entry is queued for
// the primary store and false when it went straight to the fallback. It
// never panics.
func (s *Service) Log(ctx context.Context, operation string, result audit.Result, fields ...audit.Field) (queued bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "audit log recovered from panic",
				"operation", operation,
				"panic", r,
			)
			queued = false
		}
	}()

	entry := s.factory.Build(operation, result, fields...)
	if s.closed.Load() {
		s.reject(ctx, entry)
		return false
	}
	if err := s.acc.Enqueue(entry); err != nil {
		s.reject(ctx, entry)
		return false
	}
	return true
}

func (s *Service) reject(ctx context.Context, entry audit.Entry) {
	s.totalFailed.Add(1)
	s.metrics.addFailed(1, ReasonClosed)
	s.fallback.Write(ctx, []audit.Entry{entry}, ReasonClosed)
}

// WriteBatch is the flush path used by the accumulator: one pipelined
// primary write, or the fallback when the write fails or the circuit is open.
func (s *Service) WriteBatch(ctx context.Context, batch []audit.Entry) {
	if len(batch) == 0 {
		return
	}
	start := time.Now()
	s.flushes.Add(1)
	defer s.metrics.observeFlush(start, len(batch))

	ctx, span := tracer.Start(ctx, "audit.flush",
		trace.WithAttributes(attribute.Int("audit.batch_size", len(batch))))
	defer span.End()

	if !s.breaker.Allow() {
		span.SetAttributes(attribute.Bool("audit.circuit_open", true))
		s.fail(ctx, batch, ReasonCircuitOpen, nil)
		return
	}

	err := s.store.Write(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		reason := ReasonPipelineFailed
		if errors.Is(err, audit.ErrBackendUnavailable) {
			reason = ReasonBackendUnavailable
		}
		_, change := s.breaker.RecordFailure()
		if change.Opened {
			s.metrics.setCircuitOpen(true)
			s.logger.WarnContext(ctx, "audit store circuit opened", "breaker", s.breaker.Name())
		}
		s.fail(ctx, batch, reason, err)
		return
	}

	_, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.metrics.setCircuitOpen(false)
		s.logger.InfoContext(ctx, "audit store circuit closed", "breaker", s.breaker.Name())
	}
	s.lastWriteFailed.Store(false)
	s.totalLogged.Add(int64(len(batch)))
	s.metrics.addLogged(len(batch))
	s.logger.DebugContext(ctx, "audit batch persisted", "entries", len(batch))
}

func (s *Service) fail(ctx context.Context, batch []audit.Entry, reason string, err error) {
	s.lastWriteFailed.Store(true)
	s.backendFailures.Add(1)
	s.totalFailed.Add(int64(len(batch)))
	s.metrics.incBackendFailures()
	s.metrics.addFailed(len(batch), reason)

	attrs := []any{"entries", len(batch), "reason", reason}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	s.logger.ErrorContext(ctx, "audit batch routed to fallback", attrs...)
	s.fallback.Write(ctx, batch, reason)
}

// Query returns matching entries newest first. Failures yield nil.
func (s *Service) Query(ctx context.Context, f audit.Filter) []audit.Entry {
	entries, err := s.store.Query(ctx, f)
	if err != nil {
		s.logger.ErrorContext(ctx, "audit query failed", "error", err)
		return nil
	}
	return entries
}

// GetStatistics returns a snapshot of the engine counters.
func (s *Service) GetStatistics(ctx context.Context) audit.Stats {
	stats := audit.Stats{
		TotalLogged:      s.totalLogged.Load(),
		TotalFailed:      s.totalFailed.Load(),
		BackendFailures:  s.backendFailures.Load(),
		QueueDepth:       s.acc.Len(),
		BackendAvailable: s.store.Available() && !s.breaker.IsOpen() && !s.lastWriteFailed.Load(),
		FallbackWritten:  s.fallback.Written(),
		FallbackFailures: s.fallback.Failures(),
		Flushes:          s.flushes.Load(),
	}
	if s.store.Available() {
		n, err := s.store.CountLast24h(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "audit recent entry count failed", "error", err)
		}
		stats.EntriesLast24h = n
	}
	return stats
}

// CleanupOldLogs removes primary-log partitions older than daysToKeep and
// returns how many were removed. Failures yield 0.
func (s *Service) CleanupOldLogs(ctx context.Context, daysToKeep int) int {
	removed, err := s.store.Cleanup(ctx, daysToKeep)
	if err != nil {
		s.logger.ErrorContext(ctx, "audit cleanup failed", "days_to_keep", daysToKeep, "error", err)
		return 0
	}
	s.metrics.addCleanup(removed)
	s.logger.InfoContext(ctx, "audit cleanup completed", "days_to_keep", daysToKeep, "removed", removed)
	return removed
}

// Flush writes any queued entries before returning.
func (s *Service) Flush(ctx context.Context) {
	s.acc.Flush(ctx)
}

// Close stops the batch timer and drains the queue. Later Log calls go to
// the fallback. Calling Close more than once is a no-op.
func (s *Service) Close(ctx context.Context) {
	if s.closed.Swap(true) {
		return
	}
	s.acc.Close(ctx)
	s.logger.InfoContext(ctx, "audit engine closed",
		"total_logged", s.totalLogged.Load(),
		"total_failed", s.totalFailed.Load(),
	)
}

// TimerPending reports whether a timeout flush is scheduled.
func (s *Service) TimerPending() bool { return s.acc.TimerPending() }
