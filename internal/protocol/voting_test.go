package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/crypto"
	"github.com/quorumlabs/adjudicator/internal/domain"
)

// commitVote commits a hidden vote for a delegate using a salt derived from
// the seed, returning the salt for the later reveal.
func (h *harness) commitVote(t *testing.T, delegate common.Address, support bool, seed uint64) [32]byte {
	t.Helper()
	salt := crypto.Uint64Salt(seed)
	commitment := crypto.VoteCommitment(testMarket, support, salt, delegate)
	if err := h.engine.CommitVote(context.Background(), testMarket, delegate, commitment); err != nil {
		t.Fatalf("commit vote for %s: %v", delegate.Hex(), err)
	}
	return salt
}

func TestCommitVoteGating(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)

	commitment := crypto.VoteCommitment(testMarket, true, crypto.Uint64Salt(1), delegateA)

	// Support window still running.
	err := h.engine.CommitVote(ctx, testMarket, delegateA, commitment)
	if !errors.Is(err, domain.ErrWindowNotOpen) {
		t.Fatalf("early commit: want ErrWindowNotOpen, got %v", err)
	}

	h.clock.Advance(domain.SupportWindow)

	if err := h.engine.CommitVote(ctx, testMarket, stranger, commitment); !errors.Is(err, domain.ErrNotDelegate) {
		t.Fatalf("stranger commit: want ErrNotDelegate, got %v", err)
	}
	if err := h.engine.CommitVote(ctx, testMarket, delegateA, common.Hash{}); !errors.Is(err, domain.ErrCommitMismatch) {
		t.Fatalf("zero commitment: want ErrCommitMismatch, got %v", err)
	}

	if err := h.engine.CommitVote(ctx, testMarket, delegateA, commitment); err != nil {
		t.Fatalf("commit in window: %v", err)
	}
	if err := h.engine.CommitVote(ctx, testMarket, delegateA, commitment); !errors.Is(err, domain.ErrAlreadyVoted) {
		t.Fatalf("double commit: want ErrAlreadyVoted, got %v", err)
	}

	h.clock.Advance(domain.VoteCommitWindow + time.Minute)
	err = h.engine.CommitVote(ctx, testMarket, delegateB, commitment)
	if !errors.Is(err, domain.ErrWindowClosed) {
		t.Fatalf("late commit: want ErrWindowClosed, got %v", err)
	}
}

func TestRevealVoteMatchAndTally(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.clock.Advance(domain.SupportWindow)

	saltA := h.commitVote(t, delegateA, true, 10)
	saltB := h.commitVote(t, delegateB, false, 11)

	// Reveal window has not opened while commits are still accepted.
	err := h.engine.RevealVote(ctx, testMarket, delegateA, true, saltA)
	if !errors.Is(err, domain.ErrWindowNotOpen) {
		t.Fatalf("early reveal: want ErrWindowNotOpen, got %v", err)
	}

	h.clock.Advance(domain.VoteCommitWindow)

	if err := h.engine.RevealVote(ctx, testMarket, delegateC, true, saltA); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("reveal without commit: want ErrNotFound, got %v", err)
	}
	// Wrong salt and flipped direction both fail the commitment check.
	if err := h.engine.RevealVote(ctx, testMarket, delegateA, true, crypto.Uint64Salt(99)); !errors.Is(err, domain.ErrCommitMismatch) {
		t.Fatalf("wrong salt: want ErrCommitMismatch, got %v", err)
	}
	if err := h.engine.RevealVote(ctx, testMarket, delegateB, true, saltB); !errors.Is(err, domain.ErrCommitMismatch) {
		t.Fatalf("flipped direction: want ErrCommitMismatch, got %v", err)
	}

	if err := h.engine.RevealVote(ctx, testMarket, delegateA, true, saltA); err != nil {
		t.Fatalf("reveal A: %v", err)
	}
	if err := h.engine.RevealVote(ctx, testMarket, delegateA, true, saltA); !errors.Is(err, domain.ErrCommitConsumed) {
		t.Fatalf("double reveal: want ErrCommitConsumed, got %v", err)
	}
	if err := h.engine.RevealVote(ctx, testMarket, delegateB, false, saltB); err != nil {
		t.Fatalf("reveal B: %v", err)
	}

	r, _ := h.engine.Resolution(testMarket)
	if r.VotesFor != 1 || r.VotesAgainst != 1 {
		t.Fatalf("tally %d/%d, want 1/1", r.VotesFor, r.VotesAgainst)
	}
	if !h.sink.has(domain.EventVoteRevealed) {
		t.Fatal("missing vote reveal event")
	}
}

func TestSupermajorityForIsAdvisory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.clock.Advance(domain.SupportWindow)

	saltA := h.commitVote(t, delegateA, true, 10)
	saltB := h.commitVote(t, delegateB, true, 11)
	saltC := h.commitVote(t, delegateC, false, 12)

	h.clock.Advance(domain.VoteCommitWindow)
	if err := h.engine.RevealVote(ctx, testMarket, delegateA, true, saltA); err != nil {
		t.Fatalf("reveal A: %v", err)
	}
	if err := h.engine.RevealVote(ctx, testMarket, delegateB, true, saltB); err != nil {
		t.Fatalf("reveal B: %v", err)
	}

	// Two thirds for: advisory approval, never terminal.
	r, _ := h.engine.Resolution(testMarket)
	if r.Status != domain.ResolutionApproved {
		t.Fatalf("status %s, want approved", r.Status)
	}
	if r.Finalized {
		t.Fatal("vote supermajority for must not finalize")
	}

	// A late against vote drops the ratio below the threshold but an
	// earlier promotion is not unwound.
	if err := h.engine.RevealVote(ctx, testMarket, delegateC, false, saltC); err != nil {
		t.Fatalf("reveal C: %v", err)
	}
	r, _ = h.engine.Resolution(testMarket)
	if r.Status != domain.ResolutionApproved {
		t.Fatalf("status after dissent %s, want approved", r.Status)
	}
}

func TestSupermajorityAgainstRejects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.clock.Advance(domain.SupportWindow)

	saltA := h.commitVote(t, delegateA, false, 10)
	saltB := h.commitVote(t, delegateB, true, 11)

	h.clock.Advance(domain.VoteCommitWindow)

	// A lone against vote is a unanimous supermajority of votes cast.
	if err := h.engine.RevealVote(ctx, testMarket, delegateA, false, saltA); err != nil {
		t.Fatalf("reveal A: %v", err)
	}
	r, _ := h.engine.Resolution(testMarket)
	if r.Status != domain.ResolutionRejected {
		t.Fatalf("status %s, want rejected", r.Status)
	}
	if r.Finalized {
		t.Fatal("vote override is an early rejection, not finalization")
	}
	if !h.sink.has(domain.EventOverride) {
		t.Fatal("missing override event")
	}
	if h.market.reverts != 1 {
		t.Fatalf("market reverts %d, want 1", h.market.reverts)
	}

	// Terminal state shuts the reveal path.
	if err := h.engine.RevealVote(ctx, testMarket, delegateB, true, saltB); !errors.Is(err, domain.ErrAlreadyFinalized) {
		t.Fatalf("reveal after rejection: want ErrAlreadyFinalized, got %v", err)
	}

	// Supporter principal comes back after the override.
	payout, err := h.engine.ClaimResolutionReward(ctx, testMarket, proposer)
	if err != nil {
		t.Fatalf("principal reclaim: %v", err)
	}
	if payout.Cmp(domain.MinProposalStake) != 0 {
		t.Fatalf("reclaim %s, want %s", payout, domain.MinProposalStake)
	}
	h.solvencyCheck(t)
}

func TestActiveDisputeSuppressesOverride(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.clock.Advance(domain.SupportWindow)

	saltA := h.commitVote(t, delegateA, false, 10)

	// A dispute filed before the reveals outranks the vote override.
	bond, err := h.engine.RequiredDisputeBond(testMarket)
	if err != nil {
		t.Fatalf("required bond: %v", err)
	}
	digest := crypto.EvidenceDigest([]byte("counter evidence"))
	if _, err := h.engine.DisputeResolution(ctx, testMarket, challenger, 2, "ipfs://counter", digest, bond); err != nil {
		t.Fatalf("dispute: %v", err)
	}

	h.clock.Advance(domain.VoteCommitWindow)
	if err := h.engine.RevealVote(ctx, testMarket, delegateA, false, saltA); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	r, _ := h.engine.Resolution(testMarket)
	if r.Status == domain.ResolutionRejected {
		t.Fatal("override fired while a dispute was active")
	}
	if r.VotesAgainst != 1 {
		t.Fatalf("votes against %d, want 1", r.VotesAgainst)
	}
}

func TestSlashNonRevealingDelegate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.clock.Advance(domain.SupportWindow)

	saltA := h.commitVote(t, delegateA, true, 10)
	h.commitVote(t, delegateB, true, 11)

	h.clock.Advance(domain.VoteCommitWindow)
	if err := h.engine.RevealVote(ctx, testMarket, delegateA, true, saltA); err != nil {
		t.Fatalf("reveal A: %v", err)
	}

	// Reveal window still open.
	err := h.engine.SlashNonRevealingLegislator(ctx, testMarket, delegateB, stranger)
	if !errors.Is(err, domain.ErrWindowNotOpen) {
		t.Fatalf("early slash: want ErrWindowNotOpen, got %v", err)
	}

	h.clock.Advance(domain.VoteRevealWindow + time.Minute)

	if err := h.engine.SlashNonRevealingLegislator(ctx, testMarket, delegateC, stranger); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("slash without commit: want ErrNotFound, got %v", err)
	}
	if err := h.engine.SlashNonRevealingLegislator(ctx, testMarket, delegateA, stranger); !errors.Is(err, domain.ErrCommitConsumed) {
		t.Fatalf("slash revealed vote: want ErrCommitConsumed, got %v", err)
	}

	if err := h.engine.SlashNonRevealingLegislator(ctx, testMarket, delegateB, stranger); err != nil {
		t.Fatalf("slash: %v", err)
	}
	if got := h.reputation.slashed[delegateB]; got != domain.ReputationSlashBps {
		t.Fatalf("reputation slashed %d bps, want %d", got, domain.ReputationSlashBps)
	}
	if m := h.engine.Metrics(); m.VotersSlashed != 1 {
		t.Fatalf("voters slashed %d, want 1", m.VotersSlashed)
	}
	if !h.sink.has(domain.EventVoterSlashed) {
		t.Fatal("missing voter slash event")
	}

	// Repeat slash and late reveal both bounce off the consumed commit.
	if err := h.engine.SlashNonRevealingLegislator(ctx, testMarket, delegateB, stranger); !errors.Is(err, domain.ErrCommitConsumed) {
		t.Fatalf("double slash: want ErrCommitConsumed, got %v", err)
	}
}

func TestSlashSurvivesReputationOutage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.clock.Advance(domain.SupportWindow)
	h.commitVote(t, delegateA, true, 10)
	h.clock.Advance(domain.VoteCommitWindow + domain.VoteRevealWindow + time.Minute)

	h.reputation.fail = true
	if err := h.engine.SlashNonRevealingLegislator(ctx, testMarket, delegateA, stranger); err != nil {
		t.Fatalf("slash with reputation outage: %v", err)
	}
	if !h.sink.has(domain.EventExternalCallFailed) {
		t.Fatal("missing external call failure event")
	}
	// Consumed despite the outage.
	if err := h.engine.SlashNonRevealingLegislator(ctx, testMarket, delegateA, stranger); !errors.Is(err, domain.ErrCommitConsumed) {
		t.Fatalf("want ErrCommitConsumed, got %v", err)
	}
}
