package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	audit "auditlog/pkg/platform/audit"
)

// Write persists a batch into the primary log and the secondary indexes with
// one pipelined request. Any error fails the whole batch; callers route it
// to the fallback without partial bookkeeping.
func (s *Store) Write(ctx context.Context, batch []audit.Entry) (err error) {
	if len(batch) == 0 {
		return nil
	}
	if s.client == nil {
		return audit.ErrBackendUnavailable
	}

	ctx, span := tracer.Start(ctx, "audit.store.write",
		trace.WithAttributes(attribute.Int("audit.batch_size", len(batch))))
	defer func() { endSpan(span, err) }()

	bodies := make([]string, len(batch))
	for i, e := range batch {
		body, err := e.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode entry %s: %w", e.ID, err)
		}
		bodies[i] = string(body)
	}

	pipe := s.client.Pipeline()
	var expiring []string
	seen := make(map[string]struct{})
	partitioned := func(key string, sc float64, member string) {
		pipe.ZAdd(ctx, key, redis.Z{Score: sc, Member: member})
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			expiring = append(expiring, key)
		}
	}

	for i, e := range batch {
		date := s.dateOf(e)
		partitioned(audit.LogKey(date), e.Timestamp, bodies[i])
		partitioned(audit.OperationKey(e.Operation, date), e.Timestamp, e.ID)
		if e.UserID != "" {
			partitioned(audit.UserKey(e.UserID, date), e.Timestamp, e.ID)
		}
		if e.SessionID != "" {
			pipe.ZAdd(ctx, audit.SessionKey(e.SessionID), redis.Z{Score: e.Timestamp, Member: e.ID})
		}
		if e.VMName != "" {
			partitioned(audit.VMKey(e.VMName, date), e.Timestamp, e.ID)
		}
		partitioned(audit.ResultKey(e.Result, date), e.Timestamp, e.ID)
	}
	for _, key := range expiring {
		pipe.Expire(ctx, key, s.retention)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write audit batch of %d: %w", len(batch), classify(err))
	}
	return nil
}
