package audit

import (
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock supplies the creation time of entries.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies globally unique entry identifiers.
type IDGenerator interface {
	NewID() string
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// UUIDGenerator issues random (v4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// NodeIdentity names the process that produces entries.
type NodeIdentity struct {
	VMSource string // host address
	VMName   string // logical node name
}

// ResolveNodeIdentity fills blank fields from the host: the hostname for the
// name and the first non-loopback IPv4 address for the source.
func ResolveNodeIdentity(source, name string) NodeIdentity {
	host, _ := os.Hostname()
	if strings.TrimSpace(name) == "" {
		name = host
	}
	if strings.TrimSpace(source) == "" {
		source = firstIPv4()
		if source == "" {
			source = host
		}
	}
	return NodeIdentity{VMSource: source, VMName: name}
}

func firstIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

// Factory builds entries with generated identity and time.
type Factory struct {
	node  NodeIdentity
	clock Clock
	ids   IDGenerator
	loc   *time.Location
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithClock overrides the wall clock.
func WithClock(c Clock) FactoryOption {
	return func(f *Factory) {
		if c != nil {
			f.clock = c
		}
	}
}

// WithIDGenerator overrides UUID generation.
func WithIDGenerator(g IDGenerator) FactoryOption {
	return func(f *Factory) {
		if g != nil {
			f.ids = g
		}
	}
}

// WithLocation sets the time zone used to derive partition dates.
func WithLocation(loc *time.Location) FactoryOption {
	return func(f *Factory) {
		if loc != nil {
			f.loc = loc
		}
	}
}

// NewFactory creates a factory stamping entries with node.
func NewFactory(node NodeIdentity, opts ...FactoryOption) *Factory {
	f := &Factory{
		node:  node,
		clock: SystemClock{},
		ids:   UUIDGenerator{},
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Location returns the partition time zone.
func (f *Factory) Location() *time.Location { return f.loc }

// Clock returns the clock used for entry timestamps.
func (f *Factory) Clock() Clock { return f.clock }

// Field sets an optional entry attribute.
type Field func(*Entry)

func WithUserID(userID string) Field {
	return func(e *Entry) { e.UserID = userID }
}

func WithSessionID(sessionID string) Field {
	return func(e *Entry) { e.SessionID = sessionID }
}

func WithIPAddress(ip string) Field {
	return func(e *Entry) { e.IPAddress = ip }
}

func WithResource(resource string) Field {
	return func(e *Entry) { e.Resource = resource }
}

func WithUserRole(role string) Field {
	return func(e *Entry) { e.UserRole = role }
}

// WithDetails attaches free-form details. They are sanitized by Build.
func WithDetails(details map[string]any) Field {
	return func(e *Entry) { e.Details = details }
}

// WithPerformance records the caller-measured duration in milliseconds.
func WithPerformance(ms float64) Field {
	return func(e *Entry) { e.PerformanceMS = &ms }
}

// UnknownOperation replaces a blank operation name.
const UnknownOperation = "unknown"

// Build creates an entry. It never fails: a blank operation becomes
// UnknownOperation and an unrecognised result becomes ResultError.
func (f *Factory) Build(operation string, result Result, fields ...Field) Entry {
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = UnknownOperation
	}
	if parsed, ok := ParseResult(string(result)); ok {
		result = parsed
	} else {
		result = ResultError
	}

	ts := EpochSeconds(f.clock.Now())
	e := Entry{
		ID:        f.ids.NewID(),
		Timestamp: ts,
		Date:      DateOf(ts, f.loc),
		Operation: operation,
		Result:    result,
	}
	for _, field := range fields {
		if field != nil {
			field(&e)
		}
	}
	e.VMSource = f.node.VMSource
	e.VMName = f.node.VMName
	e.Details = Sanitize(e.Details)
	return e
}
