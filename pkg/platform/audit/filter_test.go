package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterPath(t *testing.T) {
	for _, tc := range []struct {
		name string
		f    Filter
		want QueryPath
	}{
		{"session wins over everything", Filter{SessionID: "s", UserID: "u", Operation: "op"}, PathSession},
		{"user with operation", Filter{UserID: "u", Operation: "op", VMName: "vm"}, PathUserOperation},
		{"user", Filter{UserID: "u", Result: ResultDenied}, PathUser},
		{"operation", Filter{Operation: "op", VMName: "vm"}, PathOperation},
		{"vm", Filter{VMName: "vm", Result: ResultFailed}, PathVM},
		{"result", Filter{Result: ResultFailed}, PathResult},
		{"no filter", Filter{}, PathTimeRange},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.f.Path())
		})
	}
}

func TestFilterNormalize(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("defaults", func(t *testing.T) {
		got, hasRange := Filter{Offset: -5}.Normalize(now)
		assert.False(t, hasRange)
		assert.Equal(t, now, got.End)
		assert.Equal(t, now.Add(-24*time.Hour), got.Start)
		assert.Equal(t, DefaultLimit, got.Limit)
		assert.Zero(t, got.Offset)
	})

	t.Run("start only keeps end at now", func(t *testing.T) {
		start := now.Add(-72 * time.Hour)
		got, hasRange := Filter{Start: start, Limit: 5}.Normalize(now)
		assert.True(t, hasRange)
		assert.Equal(t, start, got.Start)
		assert.Equal(t, now, got.End)
		assert.Equal(t, 5, got.Limit)
	})

	t.Run("end only looks back one window", func(t *testing.T) {
		end := now.Add(-48 * time.Hour)
		got, hasRange := Filter{End: end}.Normalize(now)
		assert.True(t, hasRange)
		assert.Equal(t, end.Add(-DefaultWindow), got.Start)
	})
}

func TestDays(t *testing.T) {
	start := time.Date(2024, 6, 14, 23, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 16, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, []string{"2024-06-14", "2024-06-15", "2024-06-16"}, Days(start, end, time.UTC))
	assert.Equal(t, []string{"2024-06-15"}, Days(end.Add(-2*time.Hour), end.Add(-90*time.Minute), time.UTC))
	assert.Nil(t, Days(end, start, time.UTC))

	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, []string{"2024-06-14", "2024-06-15"}, Days(start, end, est))
}
