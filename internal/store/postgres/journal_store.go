package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// JournalStore implements domain.Journal using PostgreSQL. Entries are
// append-only; re-appending an event ID is a no-op so sink retries stay
// idempotent.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a JournalStore backed by the given connection pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

// Append writes one protocol event. The detail map is stored as JSONB.
func (s *JournalStore) Append(ctx context.Context, ev domain.Event) error {
	detailJSON, err := json.Marshal(ev.Detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal journal detail: %w", err)
	}

	const query = `
		INSERT INTO protocol_journal (id, kind, market_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.pool.Exec(ctx, query, ev.ID, string(ev.Kind), ev.MarketID, detailJSON, ev.At)
	if err != nil {
		return fmt.Errorf("postgres: append journal event %s: %w", ev.Kind, err)
	}
	return nil
}

// ListByMarket returns the journal for one market, newest first.
func (s *JournalStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.JournalEntry, error) {
	query := `SELECT id, kind, market_id, detail, created_at FROM protocol_journal WHERE market_id = $1`
	args := []any{marketID}
	query, args = appendListOpts(query, args, opts)

	entries, err := s.queryEntries(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal for market %s: %w", marketID, err)
	}
	return entries, nil
}

// List returns journal entries across all markets, newest first.
func (s *JournalStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.JournalEntry, error) {
	query := `SELECT id, kind, market_id, detail, created_at FROM protocol_journal WHERE 1=1`
	args := []any{}
	query, args = appendListOpts(query, args, opts)

	entries, err := s.queryEntries(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal: %w", err)
	}
	return entries, nil
}

// appendListOpts adds time filters, ordering, and pagination to a journal
// query.
func appendListOpts(query string, args []any, opts domain.ListOpts) (string, []any) {
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

func (s *JournalStore) queryEntries(ctx context.Context, query string, args []any) ([]domain.JournalEntry, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		e, err := scanJournalEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanJournalEntry(row pgx.Row) (domain.JournalEntry, error) {
	var (
		e          domain.JournalEntry
		kind       string
		detailJSON []byte
	)
	if err := row.Scan(&e.ID, &kind, &e.MarketID, &detailJSON, &e.CreatedAt); err != nil {
		return domain.JournalEntry{}, err
	}
	e.Kind = domain.EventKind(kind)
	if len(detailJSON) > 0 {
		if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
			return domain.JournalEntry{}, fmt.Errorf("unmarshal detail: %w", err)
		}
	}
	return e, nil
}

var _ domain.Journal = (*JournalStore)(nil)
