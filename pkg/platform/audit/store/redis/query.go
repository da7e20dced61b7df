package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	audit "auditlog/pkg/platform/audit"
)

// intersectTTL bounds the life of the temporary key a user+operation query
// creates if the pipeline is cut short before its DEL runs.
const intersectTTL = time.Minute

type candidate struct {
	id    string
	score float64
}

// Query returns entries matching f sorted by timestamp descending, ties
// broken by ID descending, then paged by f.Offset and f.Limit.
//
// Every partition read is a score-range query bounded to offset+limit
// members. Primary-log bodies start with their "id" field and index members
// are bare IDs, so Redis's own tie order for equal scores matches ours and the
// bounded reads never cut a page short.
func (s *Store) Query(ctx context.Context, f audit.Filter) (entries []audit.Entry, err error) {
	if s.client == nil {
		return nil, audit.ErrBackendUnavailable
	}
	f, hasRange := f.Normalize(s.clock.Now())
	path := f.Path()

	ctx, span := tracer.Start(ctx, "audit.store.query", trace.WithAttributes(
		attribute.String("audit.query_path", string(path)),
		attribute.Int("audit.limit", f.Limit),
		attribute.Int("audit.offset", f.Offset),
	))
	defer func() { endSpan(span, err) }()

	if path == audit.PathTimeRange {
		return s.scanLog(ctx, f)
	}

	var cands []candidate
	switch path {
	case audit.PathSession:
		cands, err = s.sessionCandidates(ctx, f, hasRange)
	case audit.PathUserOperation:
		cands, err = s.intersectCandidates(ctx, f)
	case audit.PathUser:
		cands, err = s.indexCandidates(ctx, f, func(day string) string { return audit.UserKey(f.UserID, day) })
	case audit.PathOperation:
		cands, err = s.indexCandidates(ctx, f, func(day string) string { return audit.OperationKey(f.Operation, day) })
	case audit.PathVM:
		cands, err = s.indexCandidates(ctx, f, func(day string) string { return audit.VMKey(f.VMName, day) })
	case audit.PathResult:
		cands, err = s.indexCandidates(ctx, f, func(day string) string { return audit.ResultKey(f.Result, day) })
	}
	if err != nil {
		return nil, err
	}

	page := pageCandidates(cands, f.Offset, f.Limit)
	span.SetAttributes(attribute.Int("audit.candidates", len(cands)))
	return s.resolve(ctx, page)
}

func rangeBy(f audit.Filter) *redis.ZRangeBy {
	return &redis.ZRangeBy{
		Min:   score(audit.EpochSeconds(f.Start)),
		Max:   score(audit.EpochSeconds(f.End)),
		Count: int64(f.Offset + f.Limit),
	}
}

// scanLog reads the primary log directly when no index applies.
func (s *Store) scanLog(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	days := audit.Days(f.Start, f.End, s.loc)
	if len(days) == 0 {
		return nil, nil
	}
	by := rangeBy(f)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(days))
	for i, day := range days {
		cmds[i] = pipe.ZRevRangeByScore(ctx, audit.LogKey(day), by)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", classify(err))
	}

	var all []audit.Entry
	for _, cmd := range cmds {
		for _, body := range cmd.Val() {
			var e audit.Entry
			if err := e.UnmarshalJSON([]byte(body)); err != nil {
				continue
			}
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Timestamp != all[j].Timestamp {
			return all[i].Timestamp > all[j].Timestamp
		}
		return all[i].ID > all[j].ID
	})
	return pageSlice(all, f.Offset, f.Limit), nil
}

// indexCandidates reads one partitioned index per day in a single pipeline.
func (s *Store) indexCandidates(ctx context.Context, f audit.Filter, keyFor func(day string) string) ([]candidate, error) {
	days := audit.Days(f.Start, f.End, s.loc)
	if len(days) == 0 {
		return nil, nil
	}
	by := rangeBy(f)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.ZSliceCmd, len(days))
	for i, day := range days {
		cmds[i] = pipe.ZRevRangeByScoreWithScores(ctx, keyFor(day), by)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read audit index: %w", classify(err))
	}
	return collect(cmds), nil
}

// sessionCandidates reads the unpartitioned session index. Without an
// explicit time range the whole session is eligible.
func (s *Store) sessionCandidates(ctx context.Context, f audit.Filter, hasRange bool) ([]candidate, error) {
	by := rangeBy(f)
	if !hasRange {
		by.Min, by.Max = "-inf", "+inf"
	}
	zs, err := s.client.ZRevRangeByScoreWithScores(ctx, audit.SessionKey(f.SessionID), by).Result()
	if err != nil {
		return nil, fmt.Errorf("read session index: %w", classify(err))
	}
	cands := make([]candidate, 0, len(zs))
	for _, z := range zs {
		if id, ok := z.Member.(string); ok {
			cands = append(cands, candidate{id: id, score: z.Score})
		}
	}
	return cands, nil
}

// intersectCandidates intersects the user and operation indexes per day on
// the server, so the result is exact rather than a filtered over-fetch.
func (s *Store) intersectCandidates(ctx context.Context, f audit.Filter) ([]candidate, error) {
	days := audit.Days(f.Start, f.End, s.loc)
	if len(days) == 0 {
		return nil, nil
	}
	by := rangeBy(f)
	prefix := "audit:tmp:" + uuid.NewString() + ":"

	pipe := s.client.Pipeline()
	cmds := make([]*redis.ZSliceCmd, len(days))
	for i, day := range days {
		tmp := prefix + day
		pipe.ZInterStore(ctx, tmp, &redis.ZStore{
			Keys:      []string{audit.UserKey(f.UserID, day), audit.OperationKey(f.Operation, day)},
			Aggregate: "MAX",
		})
		pipe.Expire(ctx, tmp, intersectTTL)
		cmds[i] = pipe.ZRevRangeByScoreWithScores(ctx, tmp, by)
		pipe.Del(ctx, tmp)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("intersect user and operation indexes: %w", classify(err))
	}
	return collect(cmds), nil
}

func collect(cmds []*redis.ZSliceCmd) []candidate {
	var cands []candidate
	for _, cmd := range cmds {
		for _, z := range cmd.Val() {
			if id, ok := z.Member.(string); ok {
				cands = append(cands, candidate{id: id, score: z.Score})
			}
		}
	}
	return cands
}

func pageCandidates(cands []candidate, offset, limit int) []candidate {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].id > cands[j].id
	})
	return pageSlice(cands, offset, limit)
}

func pageSlice[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}

// resolve fetches the bodies of the candidate IDs in one pipelined round
// trip: each candidate is looked up in its day's primary log by its exact
// score. Candidates whose body has expired are skipped.
func (s *Store) resolve(ctx context.Context, cands []candidate) ([]audit.Entry, error) {
	if len(cands) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringSliceCmd, len(cands))
	for i, c := range cands {
		sc := score(c.score)
		key := audit.LogKey(audit.DateOf(c.score, s.loc))
		cmds[i] = pipe.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: sc, Max: sc})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("resolve audit entries: %w", classify(err))
	}

	entries := make([]audit.Entry, 0, len(cands))
	for i, c := range cands {
		for _, body := range cmds[i].Val() {
			var e audit.Entry
			if err := e.UnmarshalJSON([]byte(body)); err != nil {
				continue
			}
			if e.ID == c.id {
				entries = append(entries, e)
				break
			}
		}
	}
	return entries, nil
}
