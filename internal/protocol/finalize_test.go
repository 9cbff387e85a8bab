package protocol

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/quorumlabs/adjudicator/internal/crypto"
	"github.com/quorumlabs/adjudicator/internal/domain"
)

func (h *harness) advancePastSettlement() {
	d := domain.DisputeWindow + domain.FinalizeBuffer
	if v := domain.SupportWindow + domain.VoteCommitWindow + domain.VoteRevealWindow; v > d {
		d = v
	}
	h.clock.Advance(d + time.Minute)
}

func TestFinalizeGuards(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	if err := h.engine.FinalizeResolution(ctx, "no-such", stranger); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown market: want ErrNotFound, got %v", err)
	}

	h.commitAndPropose(t, 1)
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); !errors.Is(err, domain.ErrWindowNotOpen) {
		t.Fatalf("before buffer: want ErrWindowNotOpen, got %v", err)
	}

	h.advancePastSettlement()
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("double finalize: want ErrAlreadyFinalized, got %v", err)
	}
}

func TestFinalizeApprovedNoOpposition(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.advancePastSettlement()

	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	r, _ := h.engine.Resolution(testMarket)
	if r.Status != domain.ResolutionFinalized || !r.Finalized {
		t.Fatalf("status %s finalized=%v", r.Status, r.Finalized)
	}
	// The fee never eats supporter principal: with no opposition there is
	// nothing to take.
	if h.treasury.Fees().Sign() != 0 {
		t.Fatalf("fees %s, want 0", h.treasury.Fees())
	}
	if h.market.finalOutcome != 1 {
		t.Fatalf("final outcome %d, want 1", h.market.finalOutcome)
	}

	payout, err := h.engine.ClaimResolutionReward(ctx, testMarket, proposer)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if payout.Cmp(domain.MinProposalStake) != 0 {
		t.Fatalf("payout %s, want bare principal %s", payout, domain.MinProposalStake)
	}
	h.solvencyCheck(t)
}

func TestFinalizeApprovedDistributesOppositionPool(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)

	// Both support stakes land inside the early bonus window, so reward
	// weights match and the surplus splits evenly.
	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(100)); err != nil {
		t.Fatalf("support: %v", err)
	}
	if err := h.engine.OpposeResolution(ctx, testMarket, opposer, domain.Tokens(100)); err != nil {
		t.Fatalf("oppose: %v", err)
	}

	h.advancePastSettlement()
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Fee is 2.5% of the combined 300 tokens.
	wantFee := new(big.Int).Div(new(big.Int).Mul(domain.Tokens(300), big.NewInt(domain.ProtocolFeeBps)), big.NewInt(domain.BasisPoints))
	if h.treasury.Fees().Cmp(wantFee) != 0 {
		t.Fatalf("fees %s, want %s", h.treasury.Fees(), wantFee)
	}

	first, err := h.engine.ClaimResolutionReward(ctx, testMarket, proposer)
	if err != nil {
		t.Fatalf("proposer claim: %v", err)
	}
	second, err := h.engine.ClaimResolutionReward(ctx, testMarket, supporter)
	if err != nil {
		t.Fatalf("supporter claim: %v", err)
	}
	if first.Cmp(second) != 0 {
		t.Fatalf("equal-weight payouts differ: %s vs %s", first, second)
	}
	if first.Cmp(domain.Tokens(100)) <= 0 {
		t.Fatalf("payout %s not above principal", first)
	}

	// The losing side gets nothing.
	if _, err := h.engine.ClaimOppositionReward(ctx, testMarket, opposer); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("opposition claim: want ErrNothingToClaim, got %v", err)
	}

	// Conservation: after all claims only the fee plus rounding dust stays
	// custodied.
	residual := new(big.Int).Sub(h.treasury.Custodied(), h.treasury.Fees())
	if residual.Sign() < 0 || residual.Cmp(domain.Tokens(1)) >= 0 {
		t.Fatalf("residual %s outside dust bound", residual)
	}
	h.solvencyCheck(t)
}

func TestFinalizeApprovedFoldsLosingDispute(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(300)); err != nil {
		t.Fatalf("support: %v", err)
	}

	// Filed against 400 tokens of two-backer support, the lone dispute
	// cannot outscore the resolution.
	idx := h.fileDispute(t, 2)

	h.advancePastSettlement()
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	r, _ := h.engine.Resolution(testMarket)
	if r.Status != domain.ResolutionFinalized {
		t.Fatalf("status %s, want finalized", r.Status)
	}
	disputes := h.engine.Disputes(testMarket)
	if disputes[idx].Status != domain.DisputeRejected {
		t.Fatalf("dispute status %s, want rejected", disputes[idx].Status)
	}

	// The folded pool is gone for the challenger both ways.
	if _, err := h.engine.ClaimDisputeReward(ctx, testMarket, idx, challenger); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("dispute reward: want ErrNothingToClaim, got %v", err)
	}
	if _, err := h.engine.ReclaimDisputeStake(ctx, testMarket, idx, challenger); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("dispute reclaim: want ErrNothingToClaim, got %v", err)
	}

	// It funds the supporters instead.
	payout, err := h.engine.ClaimResolutionReward(ctx, testMarket, supporter)
	if err != nil {
		t.Fatalf("supporter claim: %v", err)
	}
	if payout.Cmp(domain.Tokens(300)) <= 0 {
		t.Fatalf("payout %s not above principal", payout)
	}
	h.solvencyCheck(t)
}

func TestFinalizeRejectedByDispute(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	if err := h.engine.OpposeResolution(ctx, testMarket, opposer, domain.Tokens(40)); err != nil {
		t.Fatalf("oppose: %v", err)
	}

	// Dispute bond is 200 against 100 of support; a second backer adds 50.
	idx := h.fileDispute(t, 2)
	if err := h.engine.SupportDispute(ctx, testMarket, idx, supporter, domain.Tokens(50)); err != nil {
		t.Fatalf("back dispute: %v", err)
	}

	h.advancePastSettlement()
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	r, _ := h.engine.Resolution(testMarket)
	if r.Status != domain.ResolutionRejected || !r.Finalized {
		t.Fatalf("status %s finalized=%v, want rejected+finalized", r.Status, r.Finalized)
	}
	disputes := h.engine.Disputes(testMarket)
	if disputes[idx].Status != domain.DisputeUpheld {
		t.Fatalf("dispute status %s, want upheld", disputes[idx].Status)
	}
	if h.market.reverts != 1 {
		t.Fatalf("market reverts %d, want 1", h.market.reverts)
	}
	m := h.engine.Metrics()
	if m.ResolutionsRejected != 1 || m.DisputesUpheld != 1 {
		t.Fatalf("metrics rejected=%d upheld=%d", m.ResolutionsRejected, m.DisputesUpheld)
	}
	if m.SlashedPrincipal.Cmp(domain.MinProposalStake) != 0 {
		t.Fatalf("slashed principal %s, want %s", m.SlashedPrincipal, domain.MinProposalStake)
	}

	// Slashed supporters have nothing to claim.
	if _, err := h.engine.ClaimResolutionReward(ctx, testMarket, proposer); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("supporter claim: want ErrNothingToClaim, got %v", err)
	}

	// Combined pool 140 minus the 3.5 fee flows to the lone opposer.
	opp, err := h.engine.ClaimOppositionReward(ctx, testMarket, opposer)
	if err != nil {
		t.Fatalf("opposition claim: %v", err)
	}
	wantOpp := new(big.Int).Sub(domain.Tokens(140), h.treasury.Fees())
	if opp.Cmp(wantOpp) != 0 {
		t.Fatalf("opposition payout %s, want %s", opp, wantOpp)
	}

	// Dispute pool 250: challenger bonus is 30%, remainder to the backer.
	bonus, err := h.engine.ClaimDisputeReward(ctx, testMarket, idx, challenger)
	if err != nil {
		t.Fatalf("challenger claim: %v", err)
	}
	if bonus.Cmp(domain.Tokens(75)) != 0 {
		t.Fatalf("challenger bonus %s, want %s", bonus, domain.Tokens(75))
	}
	if _, err := h.engine.ClaimDisputeReward(ctx, testMarket, idx, challenger); !errors.Is(err, domain.ErrStakeWithdrawn) {
		t.Fatalf("repeat bonus claim: want ErrStakeWithdrawn, got %v", err)
	}
	backer, err := h.engine.ClaimDisputeReward(ctx, testMarket, idx, supporter)
	if err != nil {
		t.Fatalf("backer claim: %v", err)
	}
	if backer.Cmp(domain.Tokens(175)) != 0 {
		t.Fatalf("backer payout %s, want %s", backer, domain.Tokens(175))
	}

	// Every deposited token is now either fees or paid out.
	if h.treasury.Custodied().Cmp(h.treasury.Fees()) != 0 {
		t.Fatalf("custodied %s, want fees only %s", h.treasury.Custodied(), h.treasury.Fees())
	}
	h.solvencyCheck(t)
}

func TestFinalizeRejectedNoOppositionBurnsPool(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.fileDispute(t, 2)

	h.advancePastSettlement()
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Combined pool is support only: 100 minus the 2.5 fee, burned for want
	// of an opposing claimant.
	wantBurn := new(big.Int).Sub(domain.Tokens(100), h.treasury.Fees())
	if h.treasury.Burned().Cmp(wantBurn) != 0 {
		t.Fatalf("burned %s, want %s", h.treasury.Burned(), wantBurn)
	}
	h.solvencyCheck(t)
}

func TestLosingDisputeStakeReclaimableAfterRejection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)

	loser := h.fileDispute(t, 2)

	bond, _ := h.engine.RequiredDisputeBond(testMarket)
	digest := crypto.EvidenceDigest([]byte("stronger counter"))
	winner, err := h.engine.DisputeResolution(ctx, testMarket, opposer, 3, "ipfs://stronger", digest, bond)
	if err != nil {
		t.Fatalf("second dispute: %v", err)
	}
	// A delegate endorsement pushes the second dispute past the first.
	if err := h.engine.EndorseDispute(ctx, testMarket, winner, delegateA); err != nil {
		t.Fatalf("endorse: %v", err)
	}

	// Active disputes cannot be cashed out early.
	if _, err := h.engine.ReclaimDisputeStake(ctx, testMarket, loser, challenger); !errors.Is(err, domain.ErrNotFinalized) {
		t.Fatalf("early reclaim: want ErrNotFinalized, got %v", err)
	}

	h.advancePastSettlement()
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	disputes := h.engine.Disputes(testMarket)
	if disputes[winner].Status != domain.DisputeUpheld || disputes[loser].Status != domain.DisputeRejected {
		t.Fatalf("statuses %s/%s", disputes[winner].Status, disputes[loser].Status)
	}

	// The losing dispute's backer gets principal back; the upheld one pays
	// through the reward path, not the reclaim path.
	back, err := h.engine.ReclaimDisputeStake(ctx, testMarket, loser, challenger)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if back.Cmp(domain.Tokens(200)) != 0 {
		t.Fatalf("reclaim %s, want %s", back, domain.Tokens(200))
	}
	if _, err := h.engine.ReclaimDisputeStake(ctx, testMarket, loser, challenger); !errors.Is(err, domain.ErrStakeWithdrawn) {
		t.Fatalf("double reclaim: want ErrStakeWithdrawn, got %v", err)
	}
	if _, err := h.engine.ReclaimDisputeStake(ctx, testMarket, winner, opposer); !errors.Is(err, domain.ErrNothingToClaim) {
		t.Fatalf("upheld reclaim: want ErrNothingToClaim, got %v", err)
	}
	h.solvencyCheck(t)
}

func TestClaimTriggersLazyFinalization(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)

	if _, err := h.engine.ClaimResolutionReward(ctx, testMarket, proposer); !errors.Is(err, domain.ErrNotFinalized) {
		t.Fatalf("claim before buffer: want ErrNotFinalized, got %v", err)
	}

	h.advancePastSettlement()
	payout, err := h.engine.ClaimResolutionReward(ctx, testMarket, proposer)
	if err != nil {
		t.Fatalf("lazy claim: %v", err)
	}
	if payout.Cmp(domain.MinProposalStake) != 0 {
		t.Fatalf("payout %s, want %s", payout, domain.MinProposalStake)
	}
	r, _ := h.engine.Resolution(testMarket)
	if r.Status != domain.ResolutionFinalized {
		t.Fatalf("status %s, want finalized after lazy settle", r.Status)
	}
	h.solvencyCheck(t)
}

func TestFinalizeWaitsForVoteReveal(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.clock.Advance(domain.SupportWindow)

	saltA := h.commitVote(t, delegateA, true, 31)

	// Past the dispute buffer but inside the reveal window: finalization
	// must hold off so the committed vote can still be revealed.
	h.clock.Advance(domain.DisputeWindow + domain.FinalizeBuffer - domain.SupportWindow + time.Minute)
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); !errors.Is(err, domain.ErrWindowNotOpen) {
		t.Fatalf("finalize during reveal window: want ErrWindowNotOpen, got %v", err)
	}

	if err := h.engine.RevealVote(ctx, testMarket, delegateA, true, saltA); err != nil {
		t.Fatalf("reveal inside window: %v", err)
	}

	// The reveal was counted, so the delegate is not slashable either.
	h.clock.Advance(domain.VoteRevealWindow)
	if err := h.engine.SlashNonRevealingLegislator(ctx, testMarket, delegateA, stranger); !errors.Is(err, domain.ErrCommitConsumed) {
		t.Fatalf("slash revealed vote: want ErrCommitConsumed, got %v", err)
	}
	if err := h.engine.FinalizeResolution(ctx, testMarket, stranger); err != nil {
		t.Fatalf("finalize after reveal close: %v", err)
	}
	r, _ := h.engine.Resolution(testMarket)
	if r.VotesFor != 1 {
		t.Fatalf("votes for %d, want 1", r.VotesFor)
	}
}
