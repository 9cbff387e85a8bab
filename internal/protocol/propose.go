package protocol

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/crypto"
	"github.com/quorumlabs/adjudicator/internal/domain"
)

// CommitResolution records a bonded commitment to propose an outcome for the
// market. The market must be in its settlement phase, the caller must have
// no pending commit for this market, and the caller must be outside the
// global per-caller commit cooldown.
func (e *Engine) CommitResolution(
	ctx context.Context,
	marketID string,
	caller common.Address,
	commitment common.Hash,
	bond *big.Int,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if commitment == (common.Hash{}) {
		return fmt.Errorf("protocol: zero commitment: %w", domain.ErrCommitMismatch)
	}
	if bond == nil || bond.Cmp(domain.MinCommitBond) < 0 {
		return fmt.Errorf("protocol: commit bond below minimum: %w", domain.ErrInvalidAmount)
	}
	if err := e.treasury.Solvent(); err != nil {
		return err
	}

	phase, err := e.market.Phase(ctx, marketID)
	if err != nil {
		return fmt.Errorf("protocol: market phase query: %w", err)
	}
	if phase != domain.PhaseSettlement {
		return fmt.Errorf("protocol: market in phase %q: %w", phase, domain.ErrWrongPhase)
	}

	key := commitKey{marketID, caller}
	if c, ok := e.commits[key]; ok && !c.Consumed() {
		return fmt.Errorf("protocol: pending commit: %w", domain.ErrAlreadyExists)
	}

	now := e.now()
	if last, ok := e.lastCommit[caller]; ok && now.Sub(last) < domain.CommitCooldown {
		return fmt.Errorf("protocol: %s until next commit: %w",
			domain.CommitCooldown-now.Sub(last), domain.ErrCooldownActive)
	}

	if err := e.treasury.Deposit(bond); err != nil {
		return err
	}

	e.commits[key] = &domain.ResolutionCommit{
		MarketID:    marketID,
		Committer:   caller,
		Commitment:  commitment,
		Bond:        new(big.Int).Set(bond),
		CommittedAt: now,
	}
	e.lastCommit[caller] = now

	e.emit(ctx, domain.EventCommitted, marketID, map[string]any{
		"committer": caller.Hex(),
		"bond":      bond.String(),
	})
	return nil
}

// ProposeResolution reveals a previously committed outcome. The reveal is
// valid only inside the commit's reveal window, must reproduce the stored
// commitment exactly, and must carry valid evidence and the minimum proposal
// stake. On success the commit bond is refunded, the delegate roster is
// snapshotted for this market, the proposer's stake opens the support side,
// and the external market is advanced through its proposed and
// dispute-window phases.
func (e *Engine) ProposeResolution(
	ctx context.Context,
	marketID string,
	caller common.Address,
	outcome domain.Outcome,
	evidenceURI string,
	evidenceHash common.Hash,
	salt [32]byte,
	stake *big.Int,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := commitKey{marketID, caller}
	commit, ok := e.commits[key]
	if !ok {
		return fmt.Errorf("protocol: no commit to reveal: %w", domain.ErrNotFound)
	}
	if commit.Consumed() {
		return domain.ErrCommitConsumed
	}

	now := e.now()
	if now.Before(commit.CommittedAt.Add(domain.MinRevealDelay)) {
		return fmt.Errorf("protocol: reveal before minimum delay: %w", domain.ErrWindowNotOpen)
	}
	if now.After(commit.CommittedAt.Add(domain.MaxRevealDelay)) {
		return fmt.Errorf("protocol: reveal deadline passed: %w", domain.ErrWindowClosed)
	}

	recomputed := crypto.ResolutionCommitment(marketID, uint8(outcome), evidenceURI, evidenceHash, salt, caller)
	if recomputed != commit.Commitment {
		return domain.ErrCommitMismatch
	}

	if evidenceURI == "" || len(evidenceURI) > domain.MaxEvidenceURILen {
		return domain.ErrInvalidEvidence
	}
	if evidenceHash == (common.Hash{}) {
		return domain.ErrInvalidEvidence
	}
	if stake == nil || stake.Cmp(domain.MinProposalStake) < 0 {
		return fmt.Errorf("protocol: proposal stake below minimum: %w", domain.ErrInvalidAmount)
	}

	count, err := e.market.OutcomeCount(ctx, marketID)
	if err != nil {
		return fmt.Errorf("protocol: outcome count query: %w", err)
	}
	if outcome == domain.OutcomeNone || int(outcome) > count {
		return domain.ErrInvalidOutcome
	}

	tradingEnd, err := e.market.TradingEndsAt(ctx, marketID)
	if err != nil {
		return fmt.Errorf("protocol: trading end query: %w", err)
	}
	if now.Before(tradingEnd) {
		return fmt.Errorf("protocol: trading still open: %w", domain.ErrWrongPhase)
	}

	if _, exists := e.resolutions[marketID]; exists {
		return fmt.Errorf("protocol: resolution exists: %w", domain.ErrAlreadyExists)
	}
	if err := e.treasury.Solvent(); err != nil {
		return err
	}

	// Roster snapshot is load-bearing: without it the voting and dispute
	// phases have no electorate.
	delegates, err := e.roster.Delegates(ctx)
	if err != nil {
		return fmt.Errorf("protocol: roster snapshot: %w", err)
	}

	// The bond refund is a value transfer, not a mirror call; its failure
	// aborts the reveal.
	if err := e.treasury.Payout(commit.Bond); err != nil {
		return fmt.Errorf("protocol: bond refund: %w", err)
	}
	if err := e.treasury.Deposit(stake); err != nil {
		return err
	}

	commit.Revealed = true

	snap := make(map[common.Address]uint64, len(delegates))
	for _, d := range delegates {
		snap[d.Address] = d.Weight
	}
	e.snapshot[marketID] = snap

	bonus := revealBonusBps(now.Sub(commit.CommittedAt))

	r := &domain.Resolution{
		MarketID:         marketID,
		Proposer:         caller,
		Outcome:          outcome,
		ProposedAt:       now,
		Evidence:         domain.EvidenceRef{URI: evidenceURI, Hash: evidenceHash},
		SupportStake:     new(big.Int).Set(stake),
		OppositionStake:  new(big.Int),
		Supporters:       1,
		Status:           domain.ResolutionPending,
		ProposerBonusBps: bonus,
	}
	e.resolutions[marketID] = r

	// The proposal stake opens the support side with the proposer's timing
	// bonus attached.
	s := &domain.Stake{
		MarketID:    marketID,
		Participant: caller,
		Role:        domain.RoleSupport,
		Amount:      new(big.Int).Set(stake),
		BonusBps:    bonus,
		StakedAt:    now,
	}
	e.stakes[stakeKey{marketID, caller, domain.RoleSupport}] = s
	e.marketStakes[marketID] = append(e.marketStakes[marketID], s)

	e.metrics.ResolutionsProposed++

	// Bind a price reference for price-linked markets; best-effort.
	if e.oracle != nil {
		e.isolated(ctx, marketID, "bind_price", func() error {
			feedID, err := e.market.PriceFeedID(ctx, marketID)
			if err != nil {
				return err
			}
			if feedID == "" {
				return nil
			}
			asset, err := e.market.PriceAsset(ctx, marketID)
			if err != nil {
				return err
			}
			return e.oracle.RecordPrice(ctx, feedID, asset)
		})
	}

	// Mirror the proposal into the market's own state machine: settlement
	// -> proposed -> dispute window.
	e.isolated(ctx, marketID, "advance_proposed", func() error {
		return e.market.AdvancePhase(ctx, marketID)
	})
	e.isolated(ctx, marketID, "advance_dispute_window", func() error {
		return e.market.AdvancePhase(ctx, marketID)
	})

	e.emit(ctx, domain.EventProposed, marketID, map[string]any{
		"proposer":  caller.Hex(),
		"outcome":   int(outcome),
		"evidence":  evidenceURI,
		"stake":     stake.String(),
		"bonus_bps": bonus,
	})
	return nil
}

// SlashUnrevealedCommit burns the bond of a commit whose reveal deadline has
// passed, paying the caller a bounty. Callable by anyone; a consumed commit
// cannot be slashed twice.
func (e *Engine) SlashUnrevealedCommit(
	ctx context.Context,
	marketID string,
	committer common.Address,
	caller common.Address,
) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	commit, ok := e.commits[commitKey{marketID, committer}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if commit.Consumed() {
		return nil, domain.ErrCommitConsumed
	}
	if !e.now().After(commit.CommittedAt.Add(domain.MaxRevealDelay)) {
		return nil, fmt.Errorf("protocol: reveal window still open: %w", domain.ErrWindowNotOpen)
	}
	if err := e.treasury.Solvent(); err != nil {
		return nil, err
	}

	bounty := bpsOf(commit.Bond, domain.SlashBountyBps)
	rest := new(big.Int).Sub(commit.Bond, bounty)

	if err := e.treasury.Payout(bounty); err != nil {
		return nil, err
	}
	if err := e.treasury.Burn(rest); err != nil {
		return nil, err
	}

	commit.Slashed = true
	e.metrics.CommitsSlashed++
	e.metrics.addBounty(bounty)

	e.emit(ctx, domain.EventCommitSlashed, marketID, map[string]any{
		"committer": committer.Hex(),
		"slasher":   caller.Hex(),
		"bond":      commit.Bond.String(),
		"bounty":    bounty.String(),
	})
	return bounty, nil
}

// revealBonusBps computes the early-proposer timing bonus: the full bonus
// for revealing at the earliest allowed moment, decaying linearly to zero at
// the reveal deadline.
func revealBonusBps(elapsed time.Duration) int64 {
	if elapsed <= domain.MinRevealDelay {
		return domain.MaxTimingBonusBps
	}
	if elapsed >= domain.MaxRevealDelay {
		return 0
	}
	span := domain.MaxRevealDelay - domain.MinRevealDelay
	remaining := domain.MaxRevealDelay - elapsed
	return domain.MaxTimingBonusBps * int64(remaining) / int64(span)
}

// bpsOf returns amount * bps / BasisPoints.
func bpsOf(amount *big.Int, bps int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(bps))
	return out.Div(out, big.NewInt(domain.BasisPoints))
}
