// Package membercache answers "is this member ID a paid member" from
// an in-process snapshot of the portal's membership list, refreshing
// the snapshot on lookup misses. Refreshes are serialized: concurrent
// misses share a single portal fetch.
package membercache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"texbot/lib/telemetry"
	"texbot/services/msl"
)

var tracer = telemetry.Tracer("texbot.services.msl.membercache")

// FetchFunc fetches the full membership list from the portal.
// *msl.Client's FetchMemberList satisfies it.
type FetchFunc func(ctx context.Context) ([]msl.MembershipRecord, error)

type Options struct {
	// TTL bounds how stale a snapshot Count and Records will answer
	// from before refreshing. Zero means snapshots never expire on
	// their own and only lookup misses trigger refreshes.
	TTL time.Duration
}

type snapshot struct {
	ids         map[string]bool
	records     []msl.MembershipRecord
	version     uint64
	refreshedAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	fetch FetchFunc
	ttl   time.Duration

	group singleflight.Group

	mu   sync.RWMutex
	snap snapshot
}

func New(fetch FetchFunc, opts Options) *Cache {
	return &Cache{
		fetch: fetch,
		ttl:   opts.TTL,
	}
}

// IsMember reports whether id belongs to a current member. A miss
// against the snapshot forces a refresh and a re-check, so a recently
// purchased membership is visible immediately. Fetch and parse
// failures propagate: the caller gets an error, never a silent false.
func (c *Cache) IsMember(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "IsMember")
	defer span.End()

	c.mu.RLock()
	populated := c.snap.ids != nil
	hit := c.snap.ids[id]
	c.mu.RUnlock()

	if populated && hit {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return true, nil
	}

	if err := c.Refresh(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return false, err
	}

	c.mu.RLock()
	hit = c.snap.ids[id]
	c.mu.RUnlock()
	span.SetAttributes(attribute.Bool("cache_hit", false))
	return hit, nil
}

// Count returns the number of membership records, refreshing first
// when the snapshot is empty or past its TTL.
func (c *Cache) Count(ctx context.Context) (int, error) {
	records, err := c.Records(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Records returns the current membership snapshot, refreshing first
// when it is empty or past its TTL.
func (c *Cache) Records(ctx context.Context) ([]msl.MembershipRecord, error) {
	c.mu.RLock()
	stale := c.snap.ids == nil ||
		(c.ttl > 0 && time.Since(c.snap.refreshedAt) > c.ttl)
	records := c.snap.records
	c.mu.RUnlock()

	if !stale {
		return records, nil
	}

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	records = c.snap.records
	c.mu.RUnlock()
	return records, nil
}

// Refresh replaces the snapshot with a fresh portal fetch. Concurrent
// callers are coalesced onto one fetch. On failure the previous
// snapshot is kept.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		ctx, span := tracer.Start(ctx, "Refresh")
		defer span.End()

		records, err := c.fetch(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "membership fetch failed")
			return nil, err
		}

		ids := make(map[string]bool, len(records))
		for _, record := range records {
			if record.MemberID != "" {
				ids[record.MemberID] = true
			}
		}

		c.mu.Lock()
		c.snap = snapshot{
			ids:         ids,
			records:     records,
			version:     c.snap.version + 1,
			refreshedAt: time.Now(),
		}
		version := c.snap.version
		c.mu.Unlock()

		span.SetAttributes(
			attribute.Int("record_count", len(records)),
			attribute.Int64("version", int64(version)),
		)
		slog.DebugContext(ctx, "membership cache refreshed",
			"records", len(records),
			"version", version,
		)
		return nil, nil
	})
	return err
}

// Invalidate drops the snapshot so the next lookup refreshes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap.ids = nil
	c.snap.records = nil
	c.mu.Unlock()
}

// Version reports how many refreshes have completed.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.version
}
