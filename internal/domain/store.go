package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// LedgerStore persists the append-only opportunity ledger. ListRecent and
// ListSince return entries ordered by timestamp ascending.
type LedgerStore interface {
	Append(ctx context.Context, entry LedgerEntry) error
	ListRecent(ctx context.Context, limit int) ([]LedgerEntry, error)
	ListSince(ctx context.Context, since time.Time) ([]LedgerEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]LedgerEntry, error)
	Count(ctx context.Context) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
}
