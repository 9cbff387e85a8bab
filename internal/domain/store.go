package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// JournalEntry is one persisted protocol event row.
type JournalEntry struct {
	ID        string
	Kind      EventKind
	MarketID  string
	Detail    map[string]any
	CreatedAt time.Time
}

// Journal persists an append-only protocol event log for audit. The engine
// writes to it through an EventSink; journal failures never abort protocol
// operations.
type Journal interface {
	Append(ctx context.Context, ev Event) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]JournalEntry, error)
	List(ctx context.Context, opts ListOpts) ([]JournalEntry, error)
}

// ResolutionArchive persists terminal resolution snapshots for audit and
// cold queries. The in-memory engine state stays authoritative for claims.
type ResolutionArchive interface {
	Save(ctx context.Context, r Resolution) error
	Get(ctx context.Context, marketID string) (Resolution, error)
	ListFinalized(ctx context.Context, opts ListOpts) ([]Resolution, error)
}

// LockManager provides distributed locking for multi-instance deployments;
// the engine itself serializes with a process-local mutex.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter provides distributed rate limiting for the HTTP surface.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
