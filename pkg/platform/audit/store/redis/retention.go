package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	audit "auditlog/pkg/platform/audit"
)

// Cleanup deletes the primary-log partitions aged daysToKeep days or more,
// walking back over the configured lookback window from the cutoff day.
// Index partitions are left to their TTL. It returns how many partitions
// were removed. daysToKeep <= 0 uses the store's retention.
func (s *Store) Cleanup(ctx context.Context, daysToKeep int) (removed int, err error) {
	if s.client == nil {
		return 0, audit.ErrBackendUnavailable
	}
	if daysToKeep <= 0 {
		daysToKeep = int(s.retention.Hours() / 24)
	}

	ctx, span := tracer.Start(ctx, "audit.store.cleanup", trace.WithAttributes(
		attribute.Int("audit.days_to_keep", daysToKeep),
		attribute.Int("audit.lookback_days", s.lookbackDays),
	))
	defer func() { endSpan(span, err) }()

	cutoff := s.clock.Now().In(s.loc).AddDate(0, 0, -daysToKeep)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, s.lookbackDays)
	for i := range s.lookbackDays {
		day := cutoff.AddDate(0, 0, -i).Format(audit.DateLayout)
		cmds[i] = pipe.Del(ctx, audit.LogKey(day))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cleanup audit partitions: %w", classify(err))
	}
	for _, cmd := range cmds {
		removed += int(cmd.Val())
	}
	span.SetAttributes(attribute.Int("audit.removed", removed))
	return removed, nil
}

// CountLast24h approximates the number of entries logged in the last day as
// the sizes of today's and yesterday's primary-log partitions.
func (s *Store) CountLast24h(ctx context.Context) (int64, error) {
	if s.client == nil {
		return 0, audit.ErrBackendUnavailable
	}
	now := s.clock.Now().In(s.loc)
	pipe := s.client.Pipeline()
	today := pipe.ZCard(ctx, audit.LogKey(now.Format(audit.DateLayout)))
	yesterday := pipe.ZCard(ctx, audit.LogKey(now.AddDate(0, 0, -1).Format(audit.DateLayout)))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("count recent audit entries: %w", classify(err))
	}
	return today.Val() + yesterday.Val(), nil
}
