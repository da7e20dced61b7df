// Package fallback appends audit entries to day-stamped JSONL files when the
// primary store cannot take them. Files are for forensic recovery only and
// are never queried.
package fallback

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	audit "auditlog/pkg/platform/audit"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// Record is one line of a fallback file.
type Record struct {
	Timestamp      string       `json:"timestamp"`
	FallbackReason string       `json:"fallback_reason"`
	Entry          *audit.Entry `json:"entry"`
}

// Logger writes fallback files under a directory. It is safe for concurrent use.
type Logger struct {
	dir    string
	clock  audit.Clock
	loc    *time.Location
	logger *slog.Logger

	mu sync.Mutex

	written  atomic.Int64
	failures atomic.Int64
}

// Option configures a Logger.
type Option func(*Logger)

func WithClock(c audit.Clock) Option {
	return func(l *Logger) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithLocation sets the time zone of the file date.
func WithLocation(loc *time.Location) Option {
	return func(l *Logger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a fallback logger rooted at dir. The directory is created on
// first write.
func New(dir string, opts ...Option) *Logger {
	l := &Logger{
		dir:    dir,
		clock:  audit.SystemClock{},
		loc:    time.Local,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the file that receives records written at t.
func (l *Logger) Path(t time.Time) string {
	return filepath.Join(l.dir, "audit_"+t.In(l.loc).Format(audit.DateLayout)+".jsonl")
}

// Write appends one line per entry, named for the current processing day.
// Failures are counted and logged, never returned.
func (l *Logger) Write(ctx context.Context, batch []audit.Entry, reason string) {
	if len(batch) == 0 {
		return
	}
	now := l.clock.Now()
	if err := l.append(now, batch, reason); err != nil {
		l.failures.Add(int64(len(batch)))
		l.logger.ErrorContext(ctx, "audit fallback write failed",
			"entries", len(batch),
			"reason", reason,
			"path", l.Path(now),
			"error", err,
		)
		return
	}
	l.written.Add(int64(len(batch)))
	l.logger.WarnContext(ctx, "audit entries written to fallback",
		"entries", len(batch),
		"reason", reason,
		"path", l.Path(now),
	)
}

func (l *Logger) append(now time.Time, batch []audit.Entry, reason string) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, dirPerm); err != nil {
		return fmt.Errorf("%w: create dir: %w", audit.ErrFallbackWrite, err)
	}
	f, err := os.OpenFile(l.Path(now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("%w: open: %w", audit.ErrFallbackWrite, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close: %w", audit.ErrFallbackWrite, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	ts := now.Format(time.RFC3339Nano)
	for i := range batch {
		rec := Record{Timestamp: ts, FallbackReason: reason, Entry: &batch[i]}
		if err := enc.Encode(rec); err != nil {
			// Write a null entry so the loss is still on record.
			if err := enc.Encode(Record{Timestamp: ts, FallbackReason: reason + "; unserializable entry " + batch[i].ID}); err != nil {
				return fmt.Errorf("%w: encode: %w", audit.ErrFallbackWrite, err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", audit.ErrFallbackWrite, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %w", audit.ErrFallbackWrite, err)
	}
	return nil
}

// Written returns the number of entries written to fallback files.
func (l *Logger) Written() int64 { return l.written.Load() }

// Failures returns the number of entries that could not be written.
func (l *Logger) Failures() int64 { return l.failures.Load() }

// ReadFile decodes every record in a fallback file.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	dec := json.NewDecoder(f)
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("decode fallback record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}
