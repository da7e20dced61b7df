package audit

import "time"

const (
	// DefaultLimit caps a query page when the caller gives no limit.
	DefaultLimit = 100
	// DefaultWindow is the look-back used when no start time is given.
	DefaultWindow = 24 * time.Hour
)

// Filter selects entries. Zero values mean "not filtered"; Start and End
// default to the last DefaultWindow ending now.
type Filter struct {
	Start     time.Time
	End       time.Time
	Operation string
	UserID    string
	SessionID string
	VMName    string
	Result    Result
	Limit     int
	Offset    int
}

// QueryPath names the index a filter resolves against.
type QueryPath string

const (
	PathSession       QueryPath = "session"
	PathUserOperation QueryPath = "user_operation"
	PathUser          QueryPath = "user"
	PathOperation     QueryPath = "operation"
	PathVM            QueryPath = "vm"
	PathResult        QueryPath = "result"
	PathTimeRange     QueryPath = "time_range"
)

// Path applies the filter precedence: session, then user with operation,
// user, operation, vm, result, and finally a plain time-range scan.
func (f Filter) Path() QueryPath {
	switch {
	case f.SessionID != "":
		return PathSession
	case f.UserID != "" && f.Operation != "":
		return PathUserOperation
	case f.UserID != "":
		return PathUser
	case f.Operation != "":
		return PathOperation
	case f.VMName != "":
		return PathVM
	case f.Result != "":
		return PathResult
	default:
		return PathTimeRange
	}
}

// Normalize fills defaults relative to now and clamps paging values.
// HasRange reports whether the caller supplied either bound.
func (f Filter) Normalize(now time.Time) (out Filter, hasRange bool) {
	out = f
	hasRange = !f.Start.IsZero() || !f.End.IsZero()
	if out.End.IsZero() {
		out.End = now
	}
	if out.Start.IsZero() {
		out.Start = out.End.Add(-DefaultWindow)
	}
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out, hasRange
}

// Days lists the partition dates from start to end inclusive in loc.
// The result is empty when end precedes start.
func Days(start, end time.Time, loc *time.Location) []string {
	s := start.In(loc)
	e := end.In(loc)
	if e.Before(s) {
		return nil
	}
	day := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
	last := e.Format(DateLayout)
	var days []string
	for {
		d := day.Format(DateLayout)
		days = append(days, d)
		if d == last {
			return days
		}
		day = day.AddDate(0, 0, 1)
	}
}
