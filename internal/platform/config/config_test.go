package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Audit.BatchSize)
	assert.Equal(t, time.Second, cfg.Audit.BatchTimeout)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.Equal(t, 90*24*time.Hour, cfg.Audit.Retention())
	assert.Equal(t, 365, cfg.Audit.LookbackDays)
	assert.Equal(t, 5, cfg.Audit.BreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Audit.BreakerCooldown)
	assert.Empty(t, cfg.Redis.URL)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("AUDIT_BATCH_SIZE", "10")
	t.Setenv("AUDIT_BATCH_TIMEOUT", "250ms")
	t.Setenv("AUDIT_TIMEZONE", "UTC")
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("ADMIN_API_TOKEN", "s3cret")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Audit.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Audit.BatchTimeout)
	assert.Equal(t, "redis://cache:6379/2", cfg.Redis.URL)
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)
	loc, err := cfg.Audit.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"zero batch size", "AUDIT_BATCH_SIZE", "0"},
		{"negative retention", "AUDIT_RETENTION_DAYS", "-1"},
		{"unknown timezone", "AUDIT_TIMEZONE", "Mars/Olympus"},
		{"malformed duration", "AUDIT_BATCH_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Parse()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
