package protocol

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// ChallengeEvidence files a stake-backed objection to the proposal's
// evidence. Challenges are accepted only inside a short window after the
// proposal and are capped per market to bound the work delegates can be
// forced into.
func (e *Engine) ChallengeEvidence(
	ctx context.Context,
	marketID string,
	caller common.Address,
	reason string,
	stake *big.Int,
) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return 0, err
	}
	if terminal(r) {
		return 0, domain.ErrAlreadyFinalized
	}
	now := e.now()
	if now.After(r.ProposedAt.Add(domain.EvidenceWindow)) {
		return 0, fmt.Errorf("protocol: evidence window over: %w", domain.ErrWindowClosed)
	}
	if strings.TrimSpace(reason) == "" {
		return 0, fmt.Errorf("protocol: empty challenge reason: %w", domain.ErrInvalidEvidence)
	}
	if stake == nil || stake.Cmp(domain.MinChallengeStake) < 0 {
		return 0, fmt.Errorf("protocol: challenge stake below minimum: %w", domain.ErrInvalidAmount)
	}
	outstanding := 0
	for _, c := range e.challenges[marketID] {
		if !c.Resolved {
			outstanding++
		}
	}
	if outstanding >= domain.MaxEvidenceChallenges {
		return 0, domain.ErrChallengeCap
	}
	if err := e.treasury.Solvent(); err != nil {
		return 0, err
	}

	if err := e.treasury.Deposit(stake); err != nil {
		return 0, err
	}

	idx := len(e.challenges[marketID])
	e.challenges[marketID] = append(e.challenges[marketID], &domain.EvidenceChallenge{
		MarketID:   marketID,
		Index:      idx,
		Challenger: caller,
		Reason:     reason,
		Stake:      new(big.Int).Set(stake),
		FiledAt:    now,
	})

	e.emit(ctx, domain.EventEvidenceChallenged, marketID, map[string]any{
		"index":      idx,
		"challenger": caller.Hex(),
		"stake":      stake.String(),
	})
	return idx, nil
}

// ResolveEvidenceChallenge adjudicates one challenge. Only a delegate from
// the market's roster snapshot or the oracle manager may call it. An upheld
// challenge refunds the challenger's stake plus a bonus funded from the
// forfeited proposer stake, rejects the resolution outright, and returns the
// external market to its settlement phase; a rejected challenge refunds the
// stake.
func (e *Engine) ResolveEvidenceChallenge(
	ctx context.Context,
	marketID string,
	index int,
	caller common.Address,
	upheld bool,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(e.challenges[marketID]) {
		return domain.ErrNotFound
	}
	c := e.challenges[marketID][index]
	if c.Resolved {
		return fmt.Errorf("protocol: challenge resolved: %w", domain.ErrAlreadyExists)
	}
	if caller != e.manager && !e.inSnapshot(marketID, caller) {
		return domain.ErrUnauthorized
	}
	if err := e.treasury.Solvent(); err != nil {
		return err
	}

	// The refund is always covered by the challenger's own earmarked stake.
	// On uphold the proposer's forfeited stake funds a bonus, capped at the
	// challenge stake so the payout never reaches into funds earmarked for
	// other participants; what the bonus does not consume is burned. A later
	// upheld challenge finds the stake already gone and refunds only.
	payout := new(big.Int).Set(c.Stake)
	bonus := new(big.Int)
	var slashed *domain.Stake
	if upheld {
		if ps, ok := e.stakes[stakeKey{marketID, r.Proposer, domain.RoleSupport}]; ok && !ps.Withdrawn {
			slashed = ps
			bonus.Set(c.Stake)
			if ps.Amount.Cmp(bonus) < 0 {
				bonus.Set(ps.Amount)
			}
			payout.Add(payout, bonus)
		}
	}
	if err := e.treasury.Payout(payout); err != nil {
		return err
	}
	if slashed != nil {
		if burn := new(big.Int).Sub(slashed.Amount, bonus); burn.Sign() > 0 {
			if err := e.treasury.Burn(burn); err != nil {
				return err
			}
		}
		slashed.Withdrawn = true
		e.metrics.addSlashedPrincipal(slashed.Amount)
	}

	c.Resolved = true
	c.Upheld = upheld

	if upheld && !terminal(r) {
		e.rejectEarly(ctx, r, "evidence_challenge_upheld")
	}

	e.emit(ctx, domain.EventChallengeResolved, marketID, map[string]any{
		"index":   index,
		"upheld":  upheld,
		"payout":  payout.String(),
		"by":      caller.Hex(),
	})
	return nil
}

// rejectEarly terminates a resolution before finalization (an upheld
// evidence challenge or a delegate supermajority against). Principal on all
// sides stays claimable; the external market is reverted to settlement for a
// fresh proposal cycle.
func (e *Engine) rejectEarly(ctx context.Context, r *domain.Resolution, cause string) {
	r.Status = domain.ResolutionRejected
	e.metrics.ResolutionsRejected++

	// Any open disputes die with the proposal; backers reclaim principal.
	for _, d := range e.disputes[r.MarketID] {
		if d.Status == domain.DisputeActive {
			d.Status = domain.DisputeRejected
		}
	}

	e.isolated(ctx, r.MarketID, "revert_market", func() error {
		return e.market.Revert(ctx, r.MarketID)
	})

	e.emit(ctx, domain.EventRejected, r.MarketID, map[string]any{
		"cause": cause,
	})
}
