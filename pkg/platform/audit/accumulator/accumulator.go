// Package accumulator buffers audit entries from concurrent producers and
// hands them to a BatchWriter in batches.
//
// A batch is flushed when the queue reaches the configured size or when the
// batch timeout elapses after the first entry of a batch, whichever comes
// first. At most one timeout is pending at any time. Producers only hold the
// queue lock long enough to append; the write happens outside the lock.
package accumulator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	audit "auditlog/pkg/platform/audit"
)

const (
	DefaultBatchSize    = 50
	DefaultBatchTimeout = time.Second
)

// BatchWriter persists a batch. It owns failure handling; the accumulator
// never retries.
type BatchWriter interface {
	WriteBatch(ctx context.Context, batch []audit.Entry)
}

// Accumulator is safe for concurrent use.
type Accumulator struct {
	writer  BatchWriter
	size    int
	timeout time.Duration
	logger  *slog.Logger

	mu           sync.Mutex
	queue        []audit.Entry
	timer        *time.Timer
	timerPending bool
	timerGen     uint64
	closed       bool

	inflight sync.WaitGroup
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithBatchSize sets the queue length that triggers an immediate flush.
func WithBatchSize(n int) Option {
	return func(a *Accumulator) {
		if n > 0 {
			a.size = n
		}
	}
}

// WithBatchTimeout sets how long a partial batch may wait.
func WithBatchTimeout(d time.Duration) Option {
	return func(a *Accumulator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Accumulator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an accumulator that flushes into writer.
func New(writer BatchWriter, opts ...Option) *Accumulator {
	if writer == nil {
		panic("accumulator: batch writer cannot be nil")
	}
	a := &Accumulator{
		writer:  writer,
		size:    DefaultBatchSize,
		timeout: DefaultBatchTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.queue = make([]audit.Entry, 0, a.size)
	return a
}

// Enqueue appends entry. A full queue is swapped out and written by a
// background goroutine; otherwise a flush timer is armed if none is pending.
func (a *Accumulator) Enqueue(entry audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return audit.ErrClosed
	}

	a.queue = append(a.queue, entry)
	if len(a.queue) >= a.size {
		a.stopTimerLocked()
		batch := a.swapLocked()
		a.inflight.Add(1)
		go func() {
			defer a.inflight.Done()
			a.writer.WriteBatch(context.Background(), batch)
		}()
		return nil
	}

	if !a.timerPending {
		a.timerPending = true
		a.timerGen++
		gen := a.timerGen
		a.timer = time.AfterFunc(a.timeout, func() { a.onTimeout(gen) })
	}
	return nil
}

// onTimeout runs on the timer goroutine. A callback whose timer was stopped
// after it had already fired sees a newer generation and does nothing.
func (a *Accumulator) onTimeout(gen uint64) {
	a.mu.Lock()
	if gen != a.timerGen || !a.timerPending {
		a.mu.Unlock()
		return
	}
	a.timerPending = false
	a.timer = nil
	if a.closed {
		a.mu.Unlock()
		return
	}
	batch := a.swapLocked()
	a.inflight.Add(1)
	a.mu.Unlock()

	defer a.inflight.Done()
	if len(batch) == 0 {
		return
	}
	a.logger.Debug("audit batch timeout flush", "entries", len(batch))
	a.writer.WriteBatch(context.Background(), batch)
}

// Flush writes whatever is queued and returns once the write completes.
func (a *Accumulator) Flush(ctx context.Context) {
	a.mu.Lock()
	a.stopTimerLocked()
	batch := a.swapLocked()
	a.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	a.writer.WriteBatch(ctx, batch)
}

// Close rejects further entries, cancels the pending timer, waits for
// background flushes and drains the queue. Calling Close twice is a no-op.
func (a *Accumulator) Close(ctx context.Context) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.stopTimerLocked()
	batch := a.swapLocked()
	a.mu.Unlock()

	a.inflight.Wait()
	if len(batch) > 0 {
		a.writer.WriteBatch(ctx, batch)
	}
}

// Len returns the number of queued entries.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queue)
}

// TimerPending reports whether a timeout flush is scheduled.
func (a *Accumulator) TimerPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timerPending
}

// swapLocked replaces the queue with an empty one. Caller holds a.mu.
func (a *Accumulator) swapLocked() []audit.Entry {
	if len(a.queue) == 0 {
		return nil
	}
	batch := a.queue
	a.queue = make([]audit.Entry, 0, a.size)
	return batch
}

// stopTimerLocked cancels the pending timer and retires its generation.
// Caller holds a.mu.
func (a *Accumulator) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.timerPending = false
	a.timerGen++
}
