package protocol

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

func TestChallengeEvidenceValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("empty reason", func(t *testing.T) {
		h := newHarness(t)
		h.commitAndPropose(t, 1)
		_, err := h.engine.ChallengeEvidence(ctx, testMarket, challenger, "   ", domain.MinChallengeStake)
		if !errors.Is(err, domain.ErrInvalidEvidence) {
			t.Fatalf("want ErrInvalidEvidence, got %v", err)
		}
	})

	t.Run("stake below minimum", func(t *testing.T) {
		h := newHarness(t)
		h.commitAndPropose(t, 1)
		_, err := h.engine.ChallengeEvidence(ctx, testMarket, challenger, "fabricated source", domain.Tokens(1))
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("want ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("window closed", func(t *testing.T) {
		h := newHarness(t)
		h.commitAndPropose(t, 1)
		h.clock.Advance(domain.EvidenceWindow + time.Minute)
		_, err := h.engine.ChallengeEvidence(ctx, testMarket, challenger, "fabricated source", domain.MinChallengeStake)
		if !errors.Is(err, domain.ErrWindowClosed) {
			t.Fatalf("want ErrWindowClosed, got %v", err)
		}
	})

	t.Run("hard cap", func(t *testing.T) {
		h := newHarness(t)
		h.commitAndPropose(t, 1)
		for i := 0; i < domain.MaxEvidenceChallenges; i++ {
			addr := testAddr(0x30 + i)
			if _, err := h.engine.ChallengeEvidence(ctx, testMarket, addr, fmt.Sprintf("objection %d", i), domain.MinChallengeStake); err != nil {
				t.Fatalf("challenge %d: %v", i, err)
			}
		}
		_, err := h.engine.ChallengeEvidence(ctx, testMarket, challenger, "one too many", domain.MinChallengeStake)
		if !errors.Is(err, domain.ErrChallengeCap) {
			t.Fatalf("want ErrChallengeCap, got %v", err)
		}
	})
}

func TestResolveEvidenceChallengeAuthority(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	idx, err := h.engine.ChallengeEvidence(ctx, testMarket, challenger, "suspect screenshot", domain.MinChallengeStake)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	if err := h.engine.ResolveEvidenceChallenge(ctx, testMarket, idx, stranger, false); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger must not adjudicate, got %v", err)
	}
	// A snapshotted delegate may.
	if err := h.engine.ResolveEvidenceChallenge(ctx, testMarket, idx, delegateA, false); err != nil {
		t.Fatalf("delegate adjudication: %v", err)
	}
}

func TestRejectedChallengeRefundsStake(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	before := h.treasury.Earmarked()

	idx, _ := h.engine.ChallengeEvidence(ctx, testMarket, challenger, "suspect screenshot", domain.MinChallengeStake)
	if err := h.engine.ResolveEvidenceChallenge(ctx, testMarket, idx, manager, false); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// Stake in, stake out: earmarked back where it was.
	if h.treasury.Earmarked().Cmp(before) != 0 {
		t.Fatalf("earmarked %s, want %s", h.treasury.Earmarked(), before)
	}
	// Resolution untouched.
	r, _ := h.engine.Resolution(testMarket)
	if r.Status != domain.ResolutionPending {
		t.Fatalf("status %s, want pending", r.Status)
	}
	h.solvencyCheck(t)
}

func TestUpheldChallengeRejectsResolution(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(20)); err != nil {
		t.Fatalf("support: %v", err)
	}
	if err := h.engine.OpposeResolution(ctx, testMarket, opposer, domain.Tokens(15)); err != nil {
		t.Fatalf("oppose: %v", err)
	}

	stake := domain.MinChallengeStake
	idx, _ := h.engine.ChallengeEvidence(ctx, testMarket, challenger, "doctored evidence", stake)

	if err := h.engine.ResolveEvidenceChallenge(ctx, testMarket, idx, manager, true); err != nil {
		t.Fatalf("uphold: %v", err)
	}

	r, _ := h.engine.Resolution(testMarket)
	if r.Status != domain.ResolutionRejected {
		t.Fatalf("status %s, want rejected", r.Status)
	}
	if r.Finalized {
		t.Fatal("early rejection is not finalization")
	}
	// Market sent back to settlement for a fresh cycle.
	if h.market.reverts != 1 {
		t.Fatalf("market reverts %d, want 1", h.market.reverts)
	}
	h.solvencyCheck(t)

	// The proposer's stake was forfeited to fund the challenger bonus.
	if _, err := h.engine.ClaimResolutionReward(ctx, testMarket, proposer); !errors.Is(err, domain.ErrStakeWithdrawn) {
		t.Fatalf("proposer claim after fraud: want ErrStakeWithdrawn, got %v", err)
	}
	m := h.engine.Metrics()
	if m.SlashedPrincipal.Cmp(domain.MinProposalStake) != 0 {
		t.Fatalf("slashed principal %s, want %s", m.SlashedPrincipal, domain.MinProposalStake)
	}

	// Everyone else reclaims principal.
	payout, err := h.engine.ClaimResolutionReward(ctx, testMarket, supporter)
	if err != nil {
		t.Fatalf("supporter reclaim: %v", err)
	}
	if payout.Cmp(domain.Tokens(20)) != 0 {
		t.Fatalf("supporter reclaim %s, want %s", payout, domain.Tokens(20))
	}
	opp, err := h.engine.ClaimOppositionReward(ctx, testMarket, opposer)
	if err != nil {
		t.Fatalf("opposer reclaim: %v", err)
	}
	if opp.Cmp(domain.Tokens(15)) != 0 {
		t.Fatalf("opposer reclaim %s, want %s", opp, domain.Tokens(15))
	}
	h.solvencyCheck(t)
}

func TestFinalizeBlockedByOpenChallenge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	if _, err := h.engine.ChallengeEvidence(ctx, testMarket, challenger, "unverifiable", domain.MinChallengeStake); err != nil {
		t.Fatalf("challenge: %v", err)
	}

	h.advancePastSettlement()
	err := h.engine.FinalizeResolution(ctx, testMarket, stranger)
	if !errors.Is(err, domain.ErrChallengesPending) {
		t.Fatalf("want ErrChallengesPending, got %v", err)
	}

	// Resolving the challenge unblocks finalization; no retry machinery,
	// the caller just invokes again.
	if err := h.engine.ResolveEvidenceChallenge(ctx, testMarket, 0, manager, false); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); err != nil {
		t.Fatalf("finalize after resolve: %v", err)
	}
}

func testAddr(n int) (a [20]byte) {
	a[18] = byte(n >> 8)
	a[19] = byte(n)
	return
}

func TestUpheldChallengeBonusCappedByProposerStake(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(100)); err != nil {
		t.Fatalf("support: %v", err)
	}

	// Challenge stake twice the proposer's: the bonus is capped at what the
	// forfeited stake covers, never at funds earmarked for anyone else.
	idx, err := h.engine.ChallengeEvidence(ctx, testMarket, challenger, "fabricated source", domain.Tokens(200))
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if err := h.engine.ResolveEvidenceChallenge(ctx, testMarket, idx, manager, true); err != nil {
		t.Fatalf("uphold: %v", err)
	}
	h.solvencyCheck(t)

	// refund 200 + bonus 100 paid out; only the supporter's principal stays
	// earmarked and remains fully claimable.
	if h.treasury.Earmarked().Cmp(domain.Tokens(100)) != 0 {
		t.Fatalf("earmarked %s, want %s", h.treasury.Earmarked(), domain.Tokens(100))
	}
	payout, err := h.engine.ClaimResolutionReward(ctx, testMarket, supporter)
	if err != nil {
		t.Fatalf("supporter reclaim: %v", err)
	}
	if payout.Cmp(domain.Tokens(100)) != 0 {
		t.Fatalf("supporter reclaim %s, want %s", payout, domain.Tokens(100))
	}
	h.solvencyCheck(t)
}

func TestSecondUpheldChallengeRefundsOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)

	first, err := h.engine.ChallengeEvidence(ctx, testMarket, challenger, "stale screenshot", domain.Tokens(100))
	if err != nil {
		t.Fatalf("first challenge: %v", err)
	}
	second, err := h.engine.ChallengeEvidence(ctx, testMarket, testAddr(0x41), "forged attestation", domain.Tokens(100))
	if err != nil {
		t.Fatalf("second challenge: %v", err)
	}

	if err := h.engine.ResolveEvidenceChallenge(ctx, testMarket, first, manager, true); err != nil {
		t.Fatalf("uphold first: %v", err)
	}

	// The proposer's stake is spent; the second uphold still resolves, but
	// pays the bare refund.
	before := h.treasury.Earmarked()
	if err := h.engine.ResolveEvidenceChallenge(ctx, testMarket, second, manager, true); err != nil {
		t.Fatalf("uphold second: %v", err)
	}
	paid := new(big.Int).Sub(before, h.treasury.Earmarked())
	if paid.Cmp(domain.Tokens(100)) != 0 {
		t.Fatalf("second payout %s, want refund %s", paid, domain.Tokens(100))
	}

	// The proposer stake is slashed exactly once.
	if m := h.engine.Metrics(); m.SlashedPrincipal.Cmp(domain.MinProposalStake) != 0 {
		t.Fatalf("slashed principal %s, want %s", m.SlashedPrincipal, domain.MinProposalStake)
	}
	if h.treasury.Earmarked().Sign() != 0 {
		t.Fatalf("earmarked %s, want 0", h.treasury.Earmarked())
	}
	h.solvencyCheck(t)
}
