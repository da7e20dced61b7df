package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClock struct {
	now   time.Time
	calls int
}

func (c *countingClock) Now() time.Time {
	c.calls++
	return c.now
}

type sequenceIDs struct {
	next int
}

func (s *sequenceIDs) NewID() string {
	s.next++
	return fmt.Sprintf("id-%03d", s.next)
}

func TestFactoryBuild(t *testing.T) {
	node := NodeIdentity{VMSource: "10.0.0.7", VMName: "web-1"}
	now := time.Date(2024, 6, 15, 12, 30, 0, 500_000_000, time.UTC)

	t.Run("stamps identity, time and node once per entry", func(t *testing.T) {
		clock := &countingClock{now: now}
		ids := &sequenceIDs{}
		f := NewFactory(node, WithClock(clock), WithIDGenerator(ids), WithLocation(time.UTC))

		e := f.Build("login", ResultSuccess,
			WithUserID("alice"),
			WithSessionID("sess-1"),
			WithIPAddress("192.0.2.1"),
			WithResource("/vms/1"),
			WithUserRole("operator"),
			WithPerformance(12.5),
		)

		assert.Equal(t, 1, clock.calls)
		assert.Equal(t, "id-001", e.ID)
		assert.InDelta(t, 1718454600.5, e.Timestamp, 1e-6)
		assert.Equal(t, "2024-06-15", e.Date)
		assert.Equal(t, "login", e.Operation)
		assert.Equal(t, ResultSuccess, e.Result)
		assert.Equal(t, "alice", e.UserID)
		assert.Equal(t, "sess-1", e.SessionID)
		assert.Equal(t, "192.0.2.1", e.IPAddress)
		assert.Equal(t, "/vms/1", e.Resource)
		assert.Equal(t, "operator", e.UserRole)
		assert.Equal(t, "10.0.0.7", e.VMSource)
		assert.Equal(t, "web-1", e.VMName)
		require.NotNil(t, e.PerformanceMS)
		assert.Equal(t, 12.5, *e.PerformanceMS)
	})

	t.Run("blank operation and unknown result are normalized", func(t *testing.T) {
		f := NewFactory(node, WithClock(&countingClock{now: now}))

		e := f.Build("  ", Result("exploded"))

		assert.Equal(t, UnknownOperation, e.Operation)
		assert.Equal(t, ResultError, e.Result)
	})

	t.Run("result casing is normalized", func(t *testing.T) {
		f := NewFactory(node, WithClock(&countingClock{now: now}))
		assert.Equal(t, ResultDenied, f.Build("login", Result("DENIED")).Result)
	})

	t.Run("details are sanitized into a private copy", func(t *testing.T) {
		f := NewFactory(node, WithClock(&countingClock{now: now}))
		details := map[string]any{"password": "x", "vm": "db-2"}

		e := f.Build("vm_start", ResultSuccess, WithDetails(details))
		details["vm"] = "changed"

		assert.Equal(t, map[string]any{"vm": "db-2"}, e.Details)
	})

	t.Run("node identity cannot be overridden by fields", func(t *testing.T) {
		f := NewFactory(node, WithClock(&countingClock{now: now}))
		spoof := func(e *Entry) { e.VMName = "spoofed" }

		e := f.Build("login", ResultSuccess, spoof)

		assert.Equal(t, "web-1", e.VMName)
	})

	t.Run("date follows the configured location", func(t *testing.T) {
		est := time.FixedZone("EST", -5*3600)
		midnightUTC := time.Date(2024, 6, 15, 0, 30, 0, 0, time.UTC)
		f := NewFactory(node, WithClock(&countingClock{now: midnightUTC}), WithLocation(est))

		assert.Equal(t, "2024-06-14", f.Build("login", ResultSuccess).Date)
	})

	t.Run("unique ids by default", func(t *testing.T) {
		f := NewFactory(node)
		a := f.Build("login", ResultSuccess)
		b := f.Build("login", ResultSuccess)
		assert.NotEqual(t, a.ID, b.ID)
		assert.Len(t, a.ID, 36)
	})
}

func TestResolveNodeIdentityKeepsConfiguredValues(t *testing.T) {
	id := ResolveNodeIdentity("10.1.2.3", "node-a")
	assert.Equal(t, NodeIdentity{VMSource: "10.1.2.3", VMName: "node-a"}, id)
}
