package protocol

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

func TestClaimRequiresStake(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.advancePastSettlement()

	if _, err := h.engine.ClaimResolutionReward(ctx, testMarket, stranger); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("support claim: want ErrNothingToClaim, got %v", err)
	}
	if _, err := h.engine.ClaimOppositionReward(ctx, testMarket, stranger); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("opposition claim: want ErrNothingToClaim, got %v", err)
	}
	if _, err := h.engine.ClaimResolutionReward(ctx, "no-such", proposer); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown market: want ErrNotFound, got %v", err)
	}
}

func TestClaimIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.advancePastSettlement()

	first, err := h.engine.ClaimResolutionReward(ctx, testMarket, proposer)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if first.Sign() <= 0 {
		t.Fatalf("claim paid %s", first)
	}
	if _, err := h.engine.ClaimResolutionReward(ctx, testMarket, proposer); !errors.Is(err, domain.ErrStakeWithdrawn) {
		t.Fatalf("second claim: want ErrStakeWithdrawn, got %v", err)
	}
	h.solvencyCheck(t)
}

// Full happy-path lifecycle: commit, reveal, stakes on both sides, delegate
// votes in favor, finalization, and every claim. Checks conservation at the
// end: deposits equal payouts plus fees plus residual dust.
func TestLifecycleApprovedEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.solvencyCheck(t)

	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(150)); err != nil {
		t.Fatalf("support: %v", err)
	}
	if err := h.engine.OpposeResolution(ctx, testMarket, opposer, domain.Tokens(80)); err != nil {
		t.Fatalf("oppose: %v", err)
	}
	h.solvencyCheck(t)

	h.clock.Advance(domain.SupportWindow)
	saltA := h.commitVote(t, delegateA, true, 21)
	saltB := h.commitVote(t, delegateB, true, 22)
	h.clock.Advance(domain.VoteCommitWindow)
	if err := h.engine.RevealVote(ctx, testMarket, delegateA, true, saltA); err != nil {
		t.Fatalf("reveal A: %v", err)
	}
	if err := h.engine.RevealVote(ctx, testMarket, delegateB, true, saltB); err != nil {
		t.Fatalf("reveal B: %v", err)
	}

	h.clock.Advance(domain.VoteRevealWindow + domain.FinalizeBuffer)
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	deposited := domain.Tokens(100 + 150 + 80)

	p1, err := h.engine.ClaimResolutionReward(ctx, testMarket, proposer)
	if err != nil {
		t.Fatalf("proposer claim: %v", err)
	}
	p2, err := h.engine.ClaimResolutionReward(ctx, testMarket, supporter)
	if err != nil {
		t.Fatalf("supporter claim: %v", err)
	}
	if _, err := h.engine.ClaimOppositionReward(ctx, testMarket, opposer); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("opposer claim: want ErrNothingToClaim, got %v", err)
	}

	// Principal comes back with a share of the opposition pool on top.
	if p1.Cmp(domain.Tokens(100)) <= 0 {
		t.Fatalf("proposer payout %s not above principal", p1)
	}
	if p2.Cmp(domain.Tokens(150)) <= 0 {
		t.Fatalf("supporter payout %s not above principal", p2)
	}

	paid := new(big.Int).Add(p1, p2)
	residual := new(big.Int).Sub(deposited, paid)
	residual.Sub(residual, h.treasury.Fees())
	if residual.Sign() < 0 {
		t.Fatalf("paid out %s more than deposited", new(big.Int).Neg(residual))
	}
	if residual.Cmp(domain.Tokens(1)) >= 0 {
		t.Fatalf("residual %s outside dust bound", residual)
	}
	h.solvencyCheck(t)

	for _, kind := range []domain.EventKind{
		domain.EventCommitted,
		domain.EventProposed,
		domain.EventSupported,
		domain.EventOpposed,
		domain.EventVoteCommitted,
		domain.EventVoteRevealed,
		domain.EventFinalized,
		domain.EventClaimed,
	} {
		if !h.sink.has(kind) {
			t.Fatalf("missing lifecycle event %s", kind)
		}
	}
}

// Early bonus means an early supporter out-earns a late one staking the same
// amount.
func TestEarlySupportOutearnsLate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)

	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(100)); err != nil {
		t.Fatalf("early support: %v", err)
	}
	h.clock.Advance(domain.SupportWindow - time.Hour)
	if err := h.engine.SupportResolution(ctx, testMarket, opposer, domain.Tokens(100)); err != nil {
		t.Fatalf("late support: %v", err)
	}
	// Opposition funds the surplus.
	if err := h.engine.OpposeResolution(ctx, testMarket, challenger, domain.Tokens(100)); err != nil {
		t.Fatalf("oppose: %v", err)
	}

	h.advancePastSettlement()
	early, err := h.engine.ClaimResolutionReward(ctx, testMarket, supporter)
	if err != nil {
		t.Fatalf("early claim: %v", err)
	}
	late, err := h.engine.ClaimResolutionReward(ctx, testMarket, opposer)
	if err != nil {
		t.Fatalf("late claim: %v", err)
	}
	if early.Cmp(late) <= 0 {
		t.Fatalf("early payout %s does not beat late payout %s", early, late)
	}
	h.solvencyCheck(t)
}
