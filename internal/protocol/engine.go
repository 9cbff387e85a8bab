// Package protocol implements the resolution and dispute settlement state
// machine: commit-reveal proposals, support/opposition staking, evidence
// challenges, delegate voting, multi-round disputes, and treasury-solvent
// finalization with idempotent per-participant claims.
package protocol

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/quorumlabs/adjudicator/internal/domain"
	"github.com/quorumlabs/adjudicator/internal/ledger"
)

// composite map keys; associative lookups replace the source-of-record's
// linear scans while keeping insertion order irrelevant.
type commitKey struct {
	market string
	addr   common.Address
}

type stakeKey struct {
	market string
	addr   common.Address
	role   domain.StakeRole
}

type disputeKey struct {
	market string
	idx    int
}

type disputeStakeKey struct {
	market string
	idx    int
	addr   common.Address
}

type voteKey struct {
	market string
	addr   common.Address
}

// Engine is the protocol root. Every public operation takes the engine
// mutex, validates fully against current state, and then mutates; an
// operation either applies completely or not at all. External collaborators
// are injected interfaces; best-effort calls to them are isolated so their
// failure cannot corrupt local bookkeeping.
type Engine struct {
	mu sync.Mutex

	treasury   *ledger.Treasury
	market     domain.MarketClient
	roster     domain.DelegateRoster
	reputation domain.ReputationLedger
	oracle     domain.PriceOracle // optional
	sink       domain.EventSink   // optional
	manager    common.Address     // oracle-manager capability

	logger *slog.Logger
	now    func() time.Time

	resolutions map[string]*domain.Resolution
	commits     map[commitKey]*domain.ResolutionCommit
	lastCommit  map[common.Address]time.Time

	stakes       map[stakeKey]*domain.Stake
	marketStakes map[string][]*domain.Stake

	disputes      map[string][]*domain.Dispute
	disputeStakes map[disputeStakeKey]*domain.Stake
	disputeBacks  map[disputeKey][]*domain.Stake
	endorsed      map[disputeStakeKey]bool

	voteCommits map[voteKey]*domain.VoteCommit
	challenges  map[string][]*domain.EvidenceChallenge

	// snapshot is the per-market delegate roster frozen at proposal time.
	snapshot map[string]map[common.Address]uint64

	metrics Metrics
}

// Options carries optional engine collaborators.
type Options struct {
	Oracle  domain.PriceOracle
	Sink    domain.EventSink
	Manager common.Address
	Clock   func() time.Time
}

// NewEngine constructs the protocol engine around its treasury and external
// collaborators.
func NewEngine(
	treasury *ledger.Treasury,
	market domain.MarketClient,
	roster domain.DelegateRoster,
	reputation domain.ReputationLedger,
	logger *slog.Logger,
	opts Options,
) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		treasury:      treasury,
		market:        market,
		roster:        roster,
		reputation:    reputation,
		oracle:        opts.Oracle,
		sink:          opts.Sink,
		manager:       opts.Manager,
		logger:        logger.With(slog.String("component", "protocol")),
		now:           clock,
		resolutions:   make(map[string]*domain.Resolution),
		commits:       make(map[commitKey]*domain.ResolutionCommit),
		lastCommit:    make(map[common.Address]time.Time),
		stakes:        make(map[stakeKey]*domain.Stake),
		marketStakes:  make(map[string][]*domain.Stake),
		disputes:      make(map[string][]*domain.Dispute),
		disputeStakes: make(map[disputeStakeKey]*domain.Stake),
		disputeBacks:  make(map[disputeKey][]*domain.Stake),
		endorsed:      make(map[disputeStakeKey]bool),
		voteCommits:   make(map[voteKey]*domain.VoteCommit),
		challenges:    make(map[string][]*domain.EvidenceChallenge),
		snapshot:      make(map[string]map[common.Address]uint64),
	}
}

// emit publishes a protocol event to the configured sink. Sinks must not
// block; the engine never fails an operation over an event.
func (e *Engine) emit(ctx context.Context, kind domain.EventKind, marketID string, detail map[string]any) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(ctx, domain.Event{
		ID:       uuid.New().String(),
		Kind:     kind,
		MarketID: marketID,
		At:       e.now(),
		Detail:   detail,
	})
}

// isolated runs a best-effort external call. On failure the error is logged
// and surfaced as an event; the enclosing operation proceeds. The protocol's
// own state is the source of truth and the external state a lagging mirror.
func (e *Engine) isolated(ctx context.Context, marketID, op string, fn func() error) {
	if err := fn(); err != nil {
		e.logger.WarnContext(ctx, "external call failed",
			slog.String("market_id", marketID),
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		e.emit(ctx, domain.EventExternalCallFailed, marketID, map[string]any{
			"op":    op,
			"error": err.Error(),
		})
	}
}

// resolution returns the market's resolution or ErrNotFound.
func (e *Engine) resolution(marketID string) (*domain.Resolution, error) {
	r, ok := e.resolutions[marketID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

// inSnapshot reports whether addr was a delegate when the market's roster
// was frozen.
func (e *Engine) inSnapshot(marketID string, addr common.Address) bool {
	snap, ok := e.snapshot[marketID]
	if !ok {
		return false
	}
	_, ok = snap[addr]
	return ok
}

// hasActiveDispute reports whether any dispute for the market is still
// accruing.
func (e *Engine) hasActiveDispute(marketID string) bool {
	for _, d := range e.disputes[marketID] {
		if d.Status == domain.DisputeActive {
			return true
		}
	}
	return false
}

// hasUnresolvedChallenge reports whether any evidence challenge for the
// market is still open.
func (e *Engine) hasUnresolvedChallenge(marketID string) bool {
	for _, c := range e.challenges[marketID] {
		if !c.Resolved {
			return true
		}
	}
	return false
}

// terminal reports whether the resolution can no longer change outcome.
func terminal(r *domain.Resolution) bool {
	return r.Finalized || r.Status == domain.ResolutionRejected
}

// --- read-only views ---

// Resolution returns a copy of the market's resolution record.
func (e *Engine) Resolution(marketID string) (domain.Resolution, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.resolution(marketID)
	if err != nil {
		return domain.Resolution{}, err
	}
	return cloneResolution(r), nil
}

// Disputes returns copies of the market's disputes in filing order.
func (e *Engine) Disputes(marketID string) []domain.Dispute {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Dispute, 0, len(e.disputes[marketID]))
	for _, d := range e.disputes[marketID] {
		out = append(out, cloneDispute(d))
	}
	return out
}

// cloneResolution deep-copies a resolution so callers cannot reach engine
// state through shared big.Int pointers.
func cloneResolution(r *domain.Resolution) domain.Resolution {
	out := *r
	out.SupportStake = new(big.Int).Set(r.SupportStake)
	out.OppositionStake = new(big.Int).Set(r.OppositionStake)
	if r.SupportRewardRate != nil {
		out.SupportRewardRate = new(big.Int).Set(r.SupportRewardRate)
	}
	if r.OppositionRewardRate != nil {
		out.OppositionRewardRate = new(big.Int).Set(r.OppositionRewardRate)
	}
	return out
}

func cloneDispute(d *domain.Dispute) domain.Dispute {
	out := *d
	out.Bond = new(big.Int).Set(d.Bond)
	out.SupportStake = new(big.Int).Set(d.SupportStake)
	if d.ChallengerBonus != nil {
		out.ChallengerBonus = new(big.Int).Set(d.ChallengerBonus)
	}
	if d.BackerRewardRate != nil {
		out.BackerRewardRate = new(big.Int).Set(d.BackerRewardRate)
	}
	return out
}

// Challenges returns copies of the market's evidence challenges.
func (e *Engine) Challenges(marketID string) []domain.EvidenceChallenge {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.EvidenceChallenge, 0, len(e.challenges[marketID]))
	for _, c := range e.challenges[marketID] {
		out = append(out, *c)
	}
	return out
}

// StakeOf returns a copy of a participant's stake on one side of a market.
func (e *Engine) StakeOf(marketID string, addr common.Address, role domain.StakeRole) (domain.Stake, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.stakes[stakeKey{marketID, addr, role}]
	if !ok {
		return domain.Stake{}, domain.ErrNotFound
	}
	out := *s
	out.Amount = new(big.Int).Set(s.Amount)
	return out, nil
}

// Metrics returns a snapshot of protocol counters.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics.snapshot()
}

// DueForFinalization lists markets whose resolutions are past their
// finalizable time and still undecided; the finalizer service polls this.
func (e *Engine) DueForFinalization() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	var out []string
	for id, r := range e.resolutions {
		if terminal(r) {
			continue
		}
		if now.Before(r.FinalizableAt()) {
			continue
		}
		if e.hasUnresolvedChallenge(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
