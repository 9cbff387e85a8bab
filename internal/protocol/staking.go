package protocol

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// SupportResolution stakes behind the proposed outcome. Accepted while the
// resolution is undecided and the support window is open. Early supporters
// lock in a timing bonus that weights their reward share; the bonus is fixed
// at first contribution and never improves on top-ups.
func (e *Engine) SupportResolution(
	ctx context.Context,
	marketID string,
	caller common.Address,
	amount *big.Int,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.stakeable(marketID, amount)
	if err != nil {
		return err
	}
	now := e.now()

	key := stakeKey{marketID, caller, domain.RoleSupport}
	s, ok := e.stakes[key]
	if ok && s.Withdrawn {
		return domain.ErrStakeWithdrawn
	}

	if err := e.treasury.Deposit(amount); err != nil {
		return err
	}

	if !ok {
		s = &domain.Stake{
			MarketID:    marketID,
			Participant: caller,
			Role:        domain.RoleSupport,
			Amount:      new(big.Int),
			BonusBps:    supportBonusBps(now.Sub(r.ProposedAt)),
			StakedAt:    now,
		}
		e.stakes[key] = s
		e.marketStakes[marketID] = append(e.marketStakes[marketID], s)
		r.Supporters++
	}
	s.Amount.Add(s.Amount, amount)
	s.StakedAt = now
	r.SupportStake.Add(r.SupportStake, amount)

	e.emit(ctx, domain.EventSupported, marketID, map[string]any{
		"participant": caller.Hex(),
		"amount":      amount.String(),
		"bonus_bps":   s.BonusBps,
	})

	e.checkAutoApproval(ctx, r)
	return nil
}

// OpposeResolution stakes against the proposed outcome. Opposition earns no
// timing bonus.
func (e *Engine) OpposeResolution(
	ctx context.Context,
	marketID string,
	caller common.Address,
	amount *big.Int,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.stakeable(marketID, amount)
	if err != nil {
		return err
	}
	now := e.now()

	key := stakeKey{marketID, caller, domain.RoleOpposition}
	s, ok := e.stakes[key]
	if ok && s.Withdrawn {
		return domain.ErrStakeWithdrawn
	}

	if err := e.treasury.Deposit(amount); err != nil {
		return err
	}

	if !ok {
		s = &domain.Stake{
			MarketID:    marketID,
			Participant: caller,
			Role:        domain.RoleOpposition,
			Amount:      new(big.Int),
			StakedAt:    now,
		}
		e.stakes[key] = s
		e.marketStakes[marketID] = append(e.marketStakes[marketID], s)
		r.Opposers++
	}
	s.Amount.Add(s.Amount, amount)
	s.StakedAt = now
	r.OppositionStake.Add(r.OppositionStake, amount)

	e.emit(ctx, domain.EventOpposed, marketID, map[string]any{
		"participant": caller.Hex(),
		"amount":      amount.String(),
	})
	return nil
}

// stakeable validates the shared staking preconditions and returns the
// resolution.
func (e *Engine) stakeable(marketID string, amount *big.Int) (*domain.Resolution, error) {
	if amount == nil || amount.Cmp(domain.MinSupportStake) < 0 {
		return nil, fmt.Errorf("protocol: stake below minimum: %w", domain.ErrInvalidAmount)
	}
	r, err := e.resolution(marketID)
	if err != nil {
		return nil, err
	}
	if terminal(r) {
		return nil, domain.ErrAlreadyFinalized
	}
	if e.now().After(r.SupportWindowEnd()) {
		return nil, fmt.Errorf("protocol: support window over: %w", domain.ErrWindowClosed)
	}
	if err := e.treasury.Solvent(); err != nil {
		return nil, err
	}
	return r, nil
}

// checkAutoApproval promotes a pending resolution to the advisory approved
// state once support reaches the threshold share of combined stake. Only
// finalization is binding.
func (e *Engine) checkAutoApproval(ctx context.Context, r *domain.Resolution) {
	if r.Status != domain.ResolutionPending {
		return
	}
	combined := r.CombinedStake()
	if combined.Sign() == 0 {
		return
	}
	lhs := new(big.Int).Mul(r.SupportStake, big.NewInt(domain.BasisPoints))
	rhs := new(big.Int).Mul(combined, big.NewInt(domain.AutoApproveBps))
	if lhs.Cmp(rhs) >= 0 {
		r.Status = domain.ResolutionApproved
		e.emit(ctx, domain.EventAutoApproved, r.MarketID, map[string]any{
			"support":    r.SupportStake.String(),
			"opposition": r.OppositionStake.String(),
		})
	}
}

// supportBonusBps computes the supporter timing bonus: full inside the early
// window, then decaying linearly to zero at the end of the support window.
// Never negative, and monotonically non-increasing in elapsed time.
func supportBonusBps(elapsed time.Duration) int64 {
	if elapsed < 0 {
		return 0
	}
	if elapsed <= domain.EarlyBonusWindow {
		return domain.MaxTimingBonusBps
	}
	if elapsed >= domain.SupportWindow {
		return 0
	}
	span := domain.SupportWindow - domain.EarlyBonusWindow
	remaining := domain.SupportWindow - elapsed
	return domain.MaxTimingBonusBps * int64(remaining) / int64(span)
}
