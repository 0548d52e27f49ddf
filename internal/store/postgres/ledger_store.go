package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ascheung/poolbot/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL. The full entry
// is stored as JSONB so recorded verdicts round-trip unchanged; the action,
// net ratio and timestamp are lifted into columns for indexed queries.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

var _ domain.LedgerStore = (*LedgerStore)(nil)

// Append stores one ledger entry. Entries are never updated or deleted.
func (s *LedgerStore) Append(ctx context.Context, entry domain.LedgerEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("postgres: marshal ledger entry %s: %w", entry.ID, err)
	}

	const query = `
		INSERT INTO ledger_entries (id, entry, action, net_ratio, generation, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = s.pool.Exec(ctx, query,
		entry.ID, body,
		string(entry.Verdict.Action),
		entry.Opportunity.NetRatio.String(),
		int64(entry.Opportunity.Generation),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append ledger entry %s: %w", entry.ID, err)
	}
	return nil
}

// ListRecent returns the latest entries, ordered by timestamp ascending.
func (s *LedgerStore) ListRecent(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	query := `SELECT entry FROM ledger_entries ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	entries, err := s.scanEntries(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent ledger entries: %w", err)
	}
	// The window is selected newest-first; flip it to ascending order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// ListSince returns entries at or after the timestamp, ordered ascending.
func (s *LedgerStore) ListSince(ctx context.Context, since time.Time) ([]domain.LedgerEntry, error) {
	const query = `SELECT entry FROM ledger_entries WHERE created_at >= $1 ORDER BY created_at ASC`
	entries, err := s.scanEntries(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledger entries since %s: %w", since.Format(time.RFC3339), err)
	}
	return entries, nil
}

// ListBefore returns entries strictly before the cutoff, for archival.
func (s *LedgerStore) ListBefore(ctx context.Context, before time.Time) ([]domain.LedgerEntry, error) {
	const query = `SELECT entry FROM ledger_entries WHERE created_at < $1 ORDER BY created_at ASC`
	entries, err := s.scanEntries(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledger entries before %s: %w", before.Format(time.RFC3339), err)
	}
	return entries, nil
}

// Count returns the total number of ledger entries.
func (s *LedgerStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count ledger entries: %w", err)
	}
	return n, nil
}

func (s *LedgerStore) scanEntries(ctx context.Context, query string, args ...any) ([]domain.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LedgerEntry, error) {
		var body []byte
		if err := row.Scan(&body); err != nil {
			return domain.LedgerEntry{}, err
		}
		var entry domain.LedgerEntry
		if err := json.Unmarshal(body, &entry); err != nil {
			return domain.LedgerEntry{}, fmt.Errorf("unmarshal entry: %w", err)
		}
		return entry, nil
	})
}
