// Package audit holds the audit entry model and the pieces shared by the
// engine, its stores and the fallback: key layout, filters and sanitization.
package audit

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Result is the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultDenied  Result = "denied"
	ResultFailed  Result = "failed"
	ResultError   Result = "error"
)

// Results lists every valid result in a stable order.
var Results = []Result{ResultSuccess, ResultDenied, ResultFailed, ResultError}

// ParseResult maps a case-insensitive string onto a Result.
func ParseResult(s string) (Result, bool) {
	r := Result(strings.ToLower(strings.TrimSpace(s)))
	if r.Valid() {
		return r, true
	}
	return "", false
}

// Valid reports whether r is one of the enumerated results.
func (r Result) Valid() bool {
	switch r {
	case ResultSuccess, ResultDenied, ResultFailed, ResultError:
		return true
	}
	return false
}

func (r Result) String() string { return string(r) }

// DateLayout is the calendar-day partition key format.
const DateLayout = "2006-01-02"

// DateOf returns the partition date for an epoch-seconds timestamp in loc.
func DateOf(ts float64, loc *time.Location) string {
	return TimeOf(ts).In(loc).Format(DateLayout)
}

// TimeOf converts epoch seconds with fractional part into a time.Time.
func TimeOf(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9)))
}

// EpochSeconds converts t into epoch seconds with sub-second precision.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Entry is a single audit record. Entries are built by Factory and are never
// modified afterwards; Details is a private sanitized copy.
type Entry struct {
	ID            string
	Timestamp     float64
	Date          string
	Operation     string
	Result        Result
	UserID        string
	SessionID     string
	IPAddress     string
	Resource      string
	UserRole      string
	VMSource      string
	VMName        string
	Details       map[string]any
	PerformanceMS *float64
}

// Time returns the entry timestamp as a time.Time.
func (e Entry) Time() time.Time {
	return TimeOf(e.Timestamp)
}

// wireEntry lists the persisted fields explicitly. Empty optional strings are
// written as null.
type wireEntry struct {
	ID            string         `json:"id"`
	Timestamp     float64        `json:"timestamp"`
	Date          string         `json:"date"`
	Operation     string         `json:"operation"`
	Result        string         `json:"result"`
	UserID        *string        `json:"user_id"`
	SessionID     *string        `json:"session_id"`
	IPAddress     *string        `json:"ip_address"`
	Resource      *string        `json:"resource"`
	UserRole      *string        `json:"user_role"`
	VMSource      string         `json:"vm_source"`
	VMName        string         `json:"vm_name"`
	Details       map[string]any `json:"details"`
	PerformanceMS *float64       `json:"performance_ms"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// MarshalJSON writes the entry using its explicit wire layout.
func (e Entry) MarshalJSON() ([]byte, error) {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	return json.Marshal(wireEntry{
		ID:            e.ID,
		Timestamp:     e.Timestamp,
		Date:          e.Date,
		Operation:     e.Operation,
		Result:        string(e.Result),
		UserID:        optional(e.UserID),
		SessionID:     optional(e.SessionID),
		IPAddress:     optional(e.IPAddress),
		Resource:      optional(e.Resource),
		UserRole:      optional(e.UserRole),
		VMSource:      e.VMSource,
		VMName:        e.VMName,
		Details:       details,
		PerformanceMS: e.PerformanceMS,
	})
}

// UnmarshalJSON reads an entry written by MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode audit entry: %w", err)
	}
	if w.ID == "" {
		return fmt.Errorf("decode audit entry: %w", ErrMalformedEntry)
	}
	*e = Entry{
		ID:            w.ID,
		Timestamp:     w.Timestamp,
		Date:          w.Date,
		Operation:     w.Operation,
		Result:        Result(w.Result),
		UserID:        deref(w.UserID),
		SessionID:     deref(w.SessionID),
		IPAddress:     deref(w.IPAddress),
		Resource:      deref(w.Resource),
		UserRole:      deref(w.UserRole),
		VMSource:      w.VMSource,
		VMName:        w.VMName,
		Details:       w.Details,
		PerformanceMS: w.PerformanceMS,
	}
	return nil
}

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	TotalLogged      int64 `json:"total_logged"`
	TotalFailed      int64 `json:"total_failed"`
	BackendFailures  int64 `json:"backend_failures"`
	QueueDepth       int   `json:"queue_depth"`
	BackendAvailable bool  `json:"backend_available"`
	EntriesLast24h   int64 `json:"entries_last_24h"`
	FallbackWritten  int64 `json:"fallback_written"`
	FallbackFailures int64 `json:"fallback_failures"`
	Flushes          int64 `json:"flushes"`
}
