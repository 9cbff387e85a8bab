package protocol

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// FinalizeResolution settles the market's resolution once the dispute window
// plus buffer has elapsed and every evidence challenge is resolved. If no
// dispute outscores the resolution, the proposed outcome stands and reward
// rates are fixed; a winning dispute rejects the resolution and returns the
// market to its settlement phase. Finalization is the single irreversible
// step; everything after it is lazy per-claimant payout.
func (e *Engine) FinalizeResolution(ctx context.Context, marketID string, caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return err
	}
	return e.settle(ctx, r, caller)
}

// settle runs finalization under the engine lock.
func (e *Engine) settle(ctx context.Context, r *domain.Resolution, caller common.Address) error {
	if terminal(r) {
		return domain.ErrAlreadyFinalized
	}
	now := e.now()
	if now.Before(r.FinalizableAt()) {
		return fmt.Errorf("protocol: finalizable at %s: %w", r.FinalizableAt(), domain.ErrWindowNotOpen)
	}
	if e.hasUnresolvedChallenge(r.MarketID) {
		return domain.ErrChallengesPending
	}
	if err := e.treasury.Solvent(); err != nil {
		return err
	}

	winner := pickWinningDispute(r, e.disputes[r.MarketID])
	if winner >= 0 {
		return e.settleRejected(ctx, r, winner, caller)
	}
	return e.settleApproved(ctx, r, caller)
}

// settleApproved finalizes the proposed outcome. The fee comes off the
/// combined pool but never eats into supporter principal: it is capped by the
// non-principal funds (opposition stake plus folded dispute stakes). The
// surplus net of fee is spread over supporter reward weight, so timing
// bonuses tilt the split toward early conviction.
func (e *Engine) settleApproved(ctx context.Context, r *domain.Resolution, caller common.Address) error {
	// Disputes that never outscored the resolution forfeit their pools to
	// the supporters.
	folded := new(big.Int)
	for _, d := range e.disputes[r.MarketID] {
		if d.Status == domain.DisputeActive {
			d.Status = domain.DisputeRejected
			folded.Add(folded, d.SupportStake)
		}
	}

	fee := bpsOf(r.CombinedStake(), domain.ProtocolFeeBps)
	nonPrincipal := new(big.Int).Add(r.OppositionStake, folded)
	if fee.Cmp(nonPrincipal) > 0 {
		fee.Set(nonPrincipal)
	}
	if err := e.treasury.TakeFee(fee); err != nil {
		return err
	}

	surplus := new(big.Int).Sub(nonPrincipal, fee)

	totalWeight := new(big.Int)
	for _, s := range e.marketStakes[r.MarketID] {
		if s.Role == domain.RoleSupport && !s.Withdrawn {
			totalWeight.Add(totalWeight, s.Weight())
		}
	}

	rate := new(big.Int)
	if surplus.Sign() > 0 && totalWeight.Sign() > 0 {
		rate.Mul(surplus, domain.RateScale)
		rate.Div(rate, totalWeight)
	}

	r.Status = domain.ResolutionFinalized
	r.Finalized = true
	r.FinalizedAt = e.now()
	r.SupportRewardRate = rate
	r.OppositionRewardRate = new(big.Int)
	e.metrics.ResolutionsFinalized++

	e.isolated(ctx, r.MarketID, "set_final_outcome", func() error {
		return e.market.SetFinalOutcome(ctx, r.MarketID, r.Outcome)
	})
	e.isolated(ctx, r.MarketID, "advance_resolved", func() error {
		return e.market.AdvancePhase(ctx, r.MarketID)
	})

	e.emit(ctx, domain.EventFinalized, r.MarketID, map[string]any{
		"outcome":     int(r.Outcome),
		"fee":         fee.String(),
		"surplus":     surplus.String(),
		"reward_rate": rate.String(),
		"by":          caller.Hex(),
	})
	return nil
}

// settleRejected finalizes against the proposal: the winning dispute is
// upheld, supporter principal is slashed into the opposition payout, and the
// upheld dispute's pool pays its challenger bonus with the remainder going
// pro-rata to its other backers. The market goes back to settlement for a
// fresh proposal cycle.
func (e *Engine) settleRejected(ctx context.Context, r *domain.Resolution, winner int, caller common.Address) error {
	disputes := e.disputes[r.MarketID]
	for i, d := range disputes {
		if d.Status != domain.DisputeActive {
			continue
		}
		if i == winner {
			d.Status = domain.DisputeUpheld
		} else {
			d.Status = domain.DisputeRejected
		}
	}
	upheld := disputes[winner]
	e.metrics.DisputesUpheld++

	fee := bpsOf(r.CombinedStake(), domain.ProtocolFeeBps)
	if err := e.treasury.TakeFee(fee); err != nil {
		return err
	}

	// Everything left of the combined pool, supporter principal included,
	// funds the opposition payout.
	pool := new(big.Int).Sub(r.CombinedStake(), fee)
	oppRate := new(big.Int)
	if r.OppositionStake.Sign() > 0 {
		oppRate.Mul(pool, domain.RateScale)
		oppRate.Div(oppRate, r.OppositionStake)
	} else if pool.Sign() > 0 {
		// Nobody opposed; the slashed pool has no claimant and is burned
		// to keep the ledger accounted.
		if err := e.treasury.Burn(pool); err != nil {
			return err
		}
	}

	// Upheld dispute payout terms: flat challenger bonus off the dispute
	// pool, ceilinged for safety, remainder pro-rata among other backers.
	dp := upheld.Pool()
	bonus := bpsOf(dp, domain.ChallengerBonusBps)
	if ceiling := bpsOf(dp, domain.ChallengerBonusCapBps); bonus.Cmp(ceiling) > 0 {
		bonus.Set(ceiling)
	}
	challengerStake := e.disputeStakes[disputeStakeKey{r.MarketID, winner, upheld.Challenger}]
	otherStake := new(big.Int).Sub(dp, challengerStake.Amount)

	backerRate := new(big.Int)
	if otherStake.Sign() > 0 {
		rest := new(big.Int).Sub(dp, bonus)
		backerRate.Mul(rest, domain.RateScale)
		backerRate.Div(backerRate, otherStake)
	} else {
		// The challenger stood alone; the whole pool flows back as the
		// bonus claim.
		bonus.Set(dp)
	}
	upheld.ChallengerBonus = bonus
	upheld.BackerRewardRate = backerRate

	r.Status = domain.ResolutionRejected
	r.Finalized = true
	r.FinalizedAt = e.now()
	r.SupportRewardRate = new(big.Int)
	r.OppositionRewardRate = oppRate
	e.metrics.ResolutionsRejected++
	e.metrics.addSlashedPrincipal(r.SupportStake)

	e.isolated(ctx, r.MarketID, "revert_market", func() error {
		return e.market.Revert(ctx, r.MarketID)
	})

	e.emit(ctx, domain.EventRejected, r.MarketID, map[string]any{
		"cause":            "dispute_upheld",
		"dispute":          winner,
		"alternative":      int(upheld.Outcome),
		"fee":              fee.String(),
		"challenger_bonus": bonus.String(),
		"by":               caller.Hex(),
	})
	return nil
}

// ensureSettled lazily finalizes from a claim path once the buffer has
// elapsed. Claims before the settlement moment fail; claims after it settle
// first, then pay.
func (e *Engine) ensureSettled(ctx context.Context, r *domain.Resolution, caller common.Address) error {
	if terminal(r) {
		return nil
	}
	if e.now().Before(r.FinalizableAt()) {
		return domain.ErrNotFinalized
	}
	return e.settle(ctx, r, caller)
}
