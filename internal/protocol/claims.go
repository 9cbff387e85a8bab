package protocol

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// Claims are idempotent and order-independent. Each marks its stake
// withdrawn before paying, verifies the ledger can cover the payout, and
// rolls the withdrawal back if it cannot, so a failed claim stays claimable
// and a repeated claim fails cleanly. A claim arriving after the dispute
// window buffer triggers finalization lazily.

// ClaimResolutionReward pays a supporter. On a finalized resolution the
// payout is principal plus the weighted reward share; on an early-rejected
// resolution (evidence challenge or vote override) it is principal only; on
// a resolution rejected by a winning dispute the principal was slashed and
// there is nothing to claim.
func (e *Engine) ClaimResolutionReward(ctx context.Context, marketID string, caller common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return nil, err
	}
	if err := e.ensureSettled(ctx, r, caller); err != nil {
		return nil, err
	}

	s, ok := e.stakes[stakeKey{marketID, caller, domain.RoleSupport}]
	if !ok {
		return nil, domain.ErrNothingToClaim
	}
	if s.Withdrawn {
		return nil, domain.ErrStakeWithdrawn
	}

	payout := new(big.Int)
	switch {
	case r.Status == domain.ResolutionFinalized:
		payout.Set(s.Amount)
		if r.SupportRewardRate != nil && r.SupportRewardRate.Sign() > 0 {
			reward := new(big.Int).Mul(s.Weight(), r.SupportRewardRate)
			reward.Div(reward, domain.RateScale)
			payout.Add(payout, reward)
		}
	case r.Status == domain.ResolutionRejected && !r.Finalized:
		payout.Set(s.Amount)
	default:
		return nil, domain.ErrNothingToClaim
	}

	if err := e.payWithdrawing(ctx, s, payout, marketID, caller, "support"); err != nil {
		return nil, err
	}
	return payout, nil
}

// ClaimOppositionReward pays an opposer. On a resolution rejected at
// finalization the payout is the pro-rata share of the combined pool; on an
// early rejection it is principal only; on a finalized resolution the
// opposition pool funded the supporters and there is nothing to claim.
func (e *Engine) ClaimOppositionReward(ctx context.Context, marketID string, caller common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return nil, err
	}
	if err := e.ensureSettled(ctx, r, caller); err != nil {
		return nil, err
	}

	s, ok := e.stakes[stakeKey{marketID, caller, domain.RoleOpposition}]
	if !ok {
		return nil, domain.ErrNothingToClaim
	}
	if s.Withdrawn {
		return nil, domain.ErrStakeWithdrawn
	}

	payout := new(big.Int)
	switch {
	case r.Status == domain.ResolutionRejected && r.Finalized:
		payout.Mul(s.Amount, r.OppositionRewardRate)
		payout.Div(payout, domain.RateScale)
	case r.Status == domain.ResolutionRejected && !r.Finalized:
		payout.Set(s.Amount)
	default:
		return nil, domain.ErrNothingToClaim
	}

	if err := e.payWithdrawing(ctx, s, payout, marketID, caller, "opposition"); err != nil {
		return nil, err
	}
	return payout, nil
}

// ClaimDisputeReward pays out of an upheld dispute's pool: the challenger
// claims the flat bonus, every other backer claims their pro-rata share of
// the remainder.
func (e *Engine) ClaimDisputeReward(ctx context.Context, marketID string, index int, caller common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return nil, err
	}
	if err := e.ensureSettled(ctx, r, caller); err != nil {
		return nil, err
	}

	d, err := e.dispute(marketID, index)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.DisputeUpheld {
		return nil, domain.ErrNothingToClaim
	}

	if caller == d.Challenger {
		if d.BonusClaimed {
			return nil, domain.ErrStakeWithdrawn
		}
		if err := e.treasury.Payout(d.ChallengerBonus); err != nil {
			return nil, err
		}
		d.BonusClaimed = true
		// The challenger's principal was folded into the distributed
		// pool; consume the stake record so it cannot be re-used.
		if s, ok := e.disputeStakes[disputeStakeKey{marketID, index, caller}]; ok {
			s.Withdrawn = true
		}
		e.emit(ctx, domain.EventClaimed, marketID, map[string]any{
			"role":    "dispute_challenger",
			"index":   index,
			"payout":  d.ChallengerBonus.String(),
			"claimer": caller.Hex(),
		})
		return new(big.Int).Set(d.ChallengerBonus), nil
	}

	s, ok := e.disputeStakes[disputeStakeKey{marketID, index, caller}]
	if !ok {
		return nil, domain.ErrNothingToClaim
	}
	if s.Withdrawn {
		return nil, domain.ErrStakeWithdrawn
	}

	payout := new(big.Int).Mul(s.Amount, d.BackerRewardRate)
	payout.Div(payout, domain.RateScale)

	if err := e.payWithdrawing(ctx, s, payout, marketID, caller, "dispute_backer"); err != nil {
		return nil, err
	}
	return payout, nil
}

// ReclaimDisputeStake returns principal staked behind a dispute that was
// rejected while the resolution itself did not stand: another dispute won,
// or the proposal died early to an evidence challenge or vote override. When
// the resolution finalizes approved, rejected-dispute stakes were folded
// into the supporter surplus and are not reclaimable.
func (e *Engine) ReclaimDisputeStake(ctx context.Context, marketID string, index int, caller common.Address) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return nil, err
	}
	if err := e.ensureSettled(ctx, r, caller); err != nil {
		return nil, err
	}

	d, err := e.dispute(marketID, index)
	if err != nil {
		return nil, err
	}
	if d.Status == domain.DisputeActive {
		return nil, domain.ErrNotFinalized
	}
	if d.Status != domain.DisputeRejected || r.Status != domain.ResolutionRejected {
		return nil, domain.ErrNothingToClaim
	}

	s, ok := e.disputeStakes[disputeStakeKey{marketID, index, caller}]
	if !ok {
		return nil, domain.ErrNothingToClaim
	}
	if s.Withdrawn {
		return nil, domain.ErrStakeWithdrawn
	}

	payout := new(big.Int).Set(s.Amount)
	if err := e.payWithdrawing(ctx, s, payout, marketID, caller, "dispute_reclaim"); err != nil {
		return nil, err
	}
	return payout, nil
}

// payWithdrawing marks the stake withdrawn, pays, and rolls the withdrawal
// back if the ledger cannot cover the payout.
func (e *Engine) payWithdrawing(
	ctx context.Context,
	s *domain.Stake,
	payout *big.Int,
	marketID string,
	claimer common.Address,
	role string,
) error {
	s.Withdrawn = true
	if err := e.treasury.Payout(payout); err != nil {
		s.Withdrawn = false
		return err
	}
	e.emit(ctx, domain.EventClaimed, marketID, map[string]any{
		"role":    role,
		"payout":  payout.String(),
		"claimer": claimer.Hex(),
	})
	return nil
}
