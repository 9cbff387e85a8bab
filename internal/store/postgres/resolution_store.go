package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// ResolutionStore implements domain.ResolutionArchive using PostgreSQL.
// Snapshots are written at finalization; Save upserts so a re-finalized
// replay overwrites rather than duplicates.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a ResolutionStore backed by the given pool.
func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

const resolutionCols = `
	market_id, proposer, outcome, proposed_at,
	evidence_uri, evidence_hash,
	support_stake, opposition_stake, supporters, opposers,
	votes_for, votes_against,
	status, disputed, finalized,
	proposer_bonus_bps, support_reward_rate, opposition_reward_rate,
	finalized_at`

// Save upserts a terminal resolution snapshot keyed by market ID.
func (s *ResolutionStore) Save(ctx context.Context, r domain.Resolution) error {
	const query = `
		INSERT INTO resolutions (` + resolutionCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (market_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			support_stake = EXCLUDED.support_stake,
			opposition_stake = EXCLUDED.opposition_stake,
			supporters = EXCLUDED.supporters,
			opposers = EXCLUDED.opposers,
			votes_for = EXCLUDED.votes_for,
			votes_against = EXCLUDED.votes_against,
			status = EXCLUDED.status,
			disputed = EXCLUDED.disputed,
			finalized = EXCLUDED.finalized,
			support_reward_rate = EXCLUDED.support_reward_rate,
			opposition_reward_rate = EXCLUDED.opposition_reward_rate,
			finalized_at = EXCLUDED.finalized_at`

	_, err := s.pool.Exec(ctx, query,
		r.MarketID, r.Proposer.Hex(), int16(r.Outcome), r.ProposedAt,
		r.Evidence.URI, r.Evidence.Hash.Hex(),
		bigText(r.SupportStake), bigText(r.OppositionStake), r.Supporters, r.Opposers,
		r.VotesFor, r.VotesAgainst,
		string(r.Status), r.Disputed, r.Finalized,
		r.ProposerBonusBps, bigText(r.SupportRewardRate), bigText(r.OppositionRewardRate),
		r.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: save resolution %s: %w", r.MarketID, err)
	}
	return nil
}

// Get returns the archived resolution for a market.
func (s *ResolutionStore) Get(ctx context.Context, marketID string) (domain.Resolution, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+resolutionCols+` FROM resolutions WHERE market_id = $1`, marketID)
	r, err := scanResolution(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Resolution{}, domain.ErrNotFound
		}
		return domain.Resolution{}, fmt.Errorf("postgres: get resolution %s: %w", marketID, err)
	}
	return r, nil
}

// ListFinalized returns archived resolutions, most recently finalized first.
func (s *ResolutionStore) ListFinalized(ctx context.Context, opts domain.ListOpts) ([]domain.Resolution, error) {
	query := `SELECT ` + resolutionCols + ` FROM resolutions WHERE finalized`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND finalized_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND finalized_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY finalized_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list finalized resolutions: %w", err)
	}
	defer rows.Close()

	var resolutions []domain.Resolution
	for rows.Next() {
		r, err := scanResolution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan resolution: %w", err)
		}
		resolutions = append(resolutions, r)
	}
	return resolutions, rows.Err()
}

func scanResolution(row pgx.Row) (domain.Resolution, error) {
	var (
		r               domain.Resolution
		proposer        string
		outcome         int16
		evidenceHash    string
		supportStake    string
		oppositionStake string
		status          string
		supportRate     string
		oppositionRate  string
	)
	err := row.Scan(
		&r.MarketID, &proposer, &outcome, &r.ProposedAt,
		&r.Evidence.URI, &evidenceHash,
		&supportStake, &oppositionStake, &r.Supporters, &r.Opposers,
		&r.VotesFor, &r.VotesAgainst,
		&status, &r.Disputed, &r.Finalized,
		&r.ProposerBonusBps, &supportRate, &oppositionRate,
		&r.FinalizedAt,
	)
	if err != nil {
		return domain.Resolution{}, err
	}

	r.Proposer = common.HexToAddress(proposer)
	r.Outcome = domain.Outcome(outcome)
	r.Evidence.Hash = common.HexToHash(evidenceHash)
	r.Status = domain.ResolutionStatus(status)

	if r.SupportStake, err = parseBig(supportStake); err != nil {
		return domain.Resolution{}, fmt.Errorf("support_stake: %w", err)
	}
	if r.OppositionStake, err = parseBig(oppositionStake); err != nil {
		return domain.Resolution{}, fmt.Errorf("opposition_stake: %w", err)
	}
	if r.SupportRewardRate, err = parseBig(supportRate); err != nil {
		return domain.Resolution{}, fmt.Errorf("support_reward_rate: %w", err)
	}
	if r.OppositionRewardRate, err = parseBig(oppositionRate); err != nil {
		return domain.Resolution{}, fmt.Errorf("opposition_reward_rate: %w", err)
	}
	return r, nil
}

// bigText renders a base-unit amount for a TEXT column; nil stores as "0".
func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse amount %q", s)
	}
	return v, nil
}

var _ domain.ResolutionArchive = (*ResolutionStore)(nil)
