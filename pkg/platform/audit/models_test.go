package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryWireFormat(t *testing.T) {
	perf := 4.25
	e := Entry{
		ID:            "e-1",
		Timestamp:     1718454600.5,
		Date:          "2024-06-15",
		Operation:     "login",
		Result:        ResultDenied,
		UserID:        "alice",
		VMSource:      "10.0.0.7",
		VMName:        "web-1",
		PerformanceMS: &perf,
	}

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	t.Run("id leads the body", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(string(raw), `{"id":"e-1",`))
	})

	t.Run("absent optionals are null and details an object", func(t *testing.T) {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		assert.Nil(t, m["session_id"])
		assert.Contains(t, m, "session_id")
		assert.Equal(t, "alice", m["user_id"])
		assert.Equal(t, map[string]any{}, m["details"])
		assert.Equal(t, "denied", m["result"])
	})

	t.Run("decodes back to the same entry", func(t *testing.T) {
		var got Entry
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, e.ID, got.ID)
		assert.Equal(t, e.Timestamp, got.Timestamp)
		assert.Equal(t, e.UserID, got.UserID)
		assert.Empty(t, got.SessionID)
		require.NotNil(t, got.PerformanceMS)
		assert.Equal(t, perf, *got.PerformanceMS)
	})

	t.Run("missing id is malformed", func(t *testing.T) {
		var got Entry
		err := json.Unmarshal([]byte(`{"timestamp":1}`), &got)
		assert.ErrorIs(t, err, ErrMalformedEntry)
	})
}

func TestParseResult(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Result
		ok   bool
	}{
		{"success", ResultSuccess, true},
		{" Denied ", ResultDenied, true},
		{"FAILED", ResultFailed, true},
		{"error", ResultError, true},
		{"maybe", "", false},
		{"", "", false},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseResult(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDateOfAndTimeOf(t *testing.T) {
	ts := EpochSeconds(time.Date(2024, 6, 15, 0, 30, 0, 250_000_000, time.UTC))

	assert.Equal(t, "2024-06-15", DateOf(ts, time.UTC))
	assert.Equal(t, "2024-06-14", DateOf(ts, time.FixedZone("EST", -5*3600)))
	assert.WithinDuration(t,
		time.Date(2024, 6, 15, 0, 30, 0, 250_000_000, time.UTC),
		TimeOf(ts), time.Microsecond)
}

func TestKeys(t *testing.T) {
	const d = "2024-06-15"
	assert.Equal(t, "audit:log:2024-06-15", LogKey(d))
	assert.Equal(t, "audit:op:login:2024-06-15", OperationKey("login", d))
	assert.Equal(t, "audit:user:alice_2024-01-01:2024-06-15", UserKey("alice:2024-01-01", d))
	assert.Equal(t, "audit:session:s_1", SessionKey("s:1"))
	assert.Equal(t, "audit:vm:web-1:2024-06-15", VMKey("web-1", d))
	assert.Equal(t, "audit:result:denied:2024-06-15", ResultKey(ResultDenied, d))
}
