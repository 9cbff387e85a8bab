package protocol

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// RequiredDisputeBond returns the bond a new dispute must post right now:
// twice the current support stake, scaled linearly from 100% to 200% of that
// base as the dispute window elapses, clamped to the absolute cap and
// floored at the minimum. Late disputes pay more because they erase more
// accumulated conviction.
func (e *Engine) RequiredDisputeBond(marketID string) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, err := e.resolution(marketID)
	if err != nil {
		return nil, err
	}
	return e.requiredDisputeBond(r), nil
}

func (e *Engine) requiredDisputeBond(r *domain.Resolution) *big.Int {
	base := new(big.Int).Mul(r.SupportStake, big.NewInt(2))

	elapsed := e.now().Sub(r.ProposedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > domain.DisputeWindow {
		elapsed = domain.DisputeWindow
	}
	// multiplier grows from 10000 to 20000 bps across the window.
	mult := int64(domain.BasisPoints) + int64(domain.BasisPoints)*int64(elapsed)/int64(domain.DisputeWindow)
	bond := new(big.Int).Mul(base, big.NewInt(mult))
	bond.Div(bond, big.NewInt(domain.BasisPoints))

	if bond.Cmp(domain.DisputeBondCap) > 0 {
		bond.Set(domain.DisputeBondCap)
	}
	if bond.Cmp(domain.DisputeBondFloor) < 0 {
		bond.Set(domain.DisputeBondFloor)
	}
	return bond
}

// DisputeResolution files a bonded counter-proposal against the pending or
// provisionally approved resolution. The alternative outcome must differ
// from the proposed one and the bond must meet the dynamic minimum at the
// moment of filing. The bond counts as the challenger's supporting stake.
func (e *Engine) DisputeResolution(
	ctx context.Context,
	marketID string,
	caller common.Address,
	alternative domain.Outcome,
	evidenceURI string,
	evidenceHash common.Hash,
	bond *big.Int,
) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return 0, err
	}
	if r.Status != domain.ResolutionPending && r.Status != domain.ResolutionApproved {
		return 0, fmt.Errorf("protocol: resolution %s: %w", r.Status, domain.ErrWrongPhase)
	}
	if r.Finalized {
		return 0, domain.ErrAlreadyFinalized
	}
	now := e.now()
	if now.After(r.DisputeWindowEnd()) {
		return 0, fmt.Errorf("protocol: dispute window over: %w", domain.ErrWindowClosed)
	}
	if alternative == domain.OutcomeNone || alternative == r.Outcome {
		return 0, domain.ErrInvalidOutcome
	}
	count, err := e.market.OutcomeCount(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("protocol: outcome count query: %w", err)
	}
	if int(alternative) > count {
		return 0, domain.ErrInvalidOutcome
	}
	if evidenceURI == "" || len(evidenceURI) > domain.MaxEvidenceURILen {
		return 0, domain.ErrInvalidEvidence
	}

	required := e.requiredDisputeBond(r)
	if bond == nil || bond.Cmp(required) < 0 {
		return 0, fmt.Errorf("protocol: dispute bond %s below required %s: %w",
			bond, required, domain.ErrInvalidAmount)
	}
	if err := e.treasury.Solvent(); err != nil {
		return 0, err
	}

	if err := e.treasury.Deposit(bond); err != nil {
		return 0, err
	}

	idx := len(e.disputes[marketID])
	d := &domain.Dispute{
		MarketID:     marketID,
		Index:        idx,
		Challenger:   caller,
		Outcome:      alternative,
		Bond:         new(big.Int).Set(bond),
		SupportStake: new(big.Int).Set(bond),
		Supporters:   1,
		Status:       domain.DisputeActive,
		Evidence:     domain.EvidenceRef{URI: evidenceURI, Hash: evidenceHash},
		FiledAt:      now,
	}
	e.disputes[marketID] = append(e.disputes[marketID], d)
	r.Disputed = true

	s := &domain.Stake{
		MarketID:    marketID,
		Participant: caller,
		Amount:      new(big.Int).Set(bond),
		StakedAt:    now,
	}
	e.disputeStakes[disputeStakeKey{marketID, idx, caller}] = s
	e.disputeBacks[disputeKey{marketID, idx}] = append(e.disputeBacks[disputeKey{marketID, idx}], s)

	e.metrics.DisputesFiled++

	e.emit(ctx, domain.EventDisputed, marketID, map[string]any{
		"index":       idx,
		"challenger":  caller.Hex(),
		"alternative": int(alternative),
		"bond":        bond.String(),
	})
	return idx, nil
}

// SupportDispute stakes behind an active dispute while the dispute window is
// open.
func (e *Engine) SupportDispute(
	ctx context.Context,
	marketID string,
	index int,
	caller common.Address,
	amount *big.Int,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return err
	}
	d, err := e.dispute(marketID, index)
	if err != nil {
		return err
	}
	if d.Status != domain.DisputeActive {
		return fmt.Errorf("protocol: dispute %s: %w", d.Status, domain.ErrWrongPhase)
	}
	now := e.now()
	if now.After(r.DisputeWindowEnd()) {
		return fmt.Errorf("protocol: dispute window over: %w", domain.ErrWindowClosed)
	}
	if amount == nil || amount.Cmp(domain.MinSupportStake) < 0 {
		return fmt.Errorf("protocol: stake below minimum: %w", domain.ErrInvalidAmount)
	}
	if err := e.treasury.Solvent(); err != nil {
		return err
	}

	key := disputeStakeKey{marketID, index, caller}
	s, ok := e.disputeStakes[key]
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
			Amount:      new(big.Int),
			StakedAt:    now,
		}
		e.disputeStakes[key] = s
		e.disputeBacks[disputeKey{marketID, index}] = append(e.disputeBacks[disputeKey{marketID, index}], s)
		d.Supporters++
	}
	s.Amount.Add(s.Amount, amount)
	s.StakedAt = now
	d.SupportStake.Add(d.SupportStake, amount)

	e.emit(ctx, domain.EventDisputeSupported, marketID, map[string]any{
		"index":       index,
		"participant": caller.Hex(),
		"amount":      amount.String(),
	})
	return nil
}

// EndorseDispute records a delegate's endorsement of a dispute: one per
// delegate per dispute, only from the roster snapshot, only before the
// dispute window closes.
func (e *Engine) EndorseDispute(
	ctx context.Context,
	marketID string,
	index int,
	delegate common.Address,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return err
	}
	d, err := e.dispute(marketID, index)
	if err != nil {
		return err
	}
	if d.Status != domain.DisputeActive {
		return fmt.Errorf("protocol: dispute %s: %w", d.Status, domain.ErrWrongPhase)
	}
	if e.now().After(r.DisputeWindowEnd()) {
		return fmt.Errorf("protocol: dispute window over: %w", domain.ErrWindowClosed)
	}
	if !e.inSnapshot(marketID, delegate) {
		return domain.ErrNotDelegate
	}

	key := disputeStakeKey{marketID, index, delegate}
	if e.endorsed[key] {
		return domain.ErrAlreadyVoted
	}
	e.endorsed[key] = true
	d.Endorsements++

	e.emit(ctx, domain.EventDisputeEndorsed, marketID, map[string]any{
		"index":    index,
		"delegate": delegate.Hex(),
	})
	return nil
}

// dispute returns the market's dispute at index or ErrNotFound.
func (e *Engine) dispute(marketID string, index int) (*domain.Dispute, error) {
	list := e.disputes[marketID]
	if index < 0 || index >= len(list) {
		return nil, domain.ErrNotFound
	}
	return list[index], nil
}
