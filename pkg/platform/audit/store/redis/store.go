// Package redis persists audit entries in Redis sorted sets.
//
// Layout (all sets scored by entry timestamp in epoch seconds):
//
//	audit:log:{date}              serialized entries (primary log)
//	audit:op:{operation}:{date}   entry IDs
//	audit:user:{user_id}:{date}   entry IDs
//	audit:session:{session_id}    entry IDs, not partitioned, no TTL
//	audit:vm:{vm_name}:{date}     entry IDs
//	audit:result:{result}:{date}  entry IDs
//
// Every partitioned key has its TTL refreshed to the retention window on
// each write.
package redis

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	audit "auditlog/pkg/platform/audit"
)

const (
	DefaultRetention    = 90 * 24 * time.Hour
	DefaultLookbackDays = 365
)

var tracer = otel.Tracer("auditlog/pkg/platform/audit/store/redis")

// Store is the Redis-backed primary store. The client is owned by the caller.
type Store struct {
	client       redis.UniversalClient
	retention    time.Duration
	lookbackDays int
	loc          *time.Location
	clock        audit.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithRetention sets the TTL applied to partitioned keys.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithLookbackDays bounds how many partitions Cleanup enumerates.
func WithLookbackDays(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.lookbackDays = n
		}
	}
}

// WithLocation sets the time zone of partition dates. It must match the
// location entries were built with.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(c audit.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// New creates a store. A nil client yields a store whose every call fails
// with audit.ErrBackendUnavailable.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:       client,
		retention:    DefaultRetention,
		lookbackDays: DefaultLookbackDays,
		loc:          time.Local,
		clock:        audit.SystemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retention returns the TTL of partitioned keys.
func (s *Store) Retention() time.Duration { return s.retention }

// Available reports whether a client is configured.
func (s *Store) Available() bool { return s.client != nil }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return audit.ErrBackendUnavailable
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps client errors onto the audit sentinels: transport problems
// are ErrBackendUnavailable, anything else raised by the pipeline is
// ErrBackendPartialFailure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, redis.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return errors.Join(audit.ErrBackendUnavailable, err)
	default:
		return errors.Join(audit.ErrBackendPartialFailure, err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// score formats a timestamp so Redis parses back the identical double.
func score(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}

func (s *Store) dateOf(e audit.Entry) string {
	if e.Date != "" {
		return e.Date
	}
	return audit.DateOf(e.Timestamp, s.loc)
}
