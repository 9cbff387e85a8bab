package protocol

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/crypto"
	"github.com/quorumlabs/adjudicator/internal/domain"
)

// CommitVote records a delegate's hidden vote on the market's resolution.
// Only delegates present in the roster snapshot taken at proposal time may
// vote; the commit window opens when the support window closes.
func (e *Engine) CommitVote(
	ctx context.Context,
	marketID string,
	delegate common.Address,
	commitment common.Hash,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return err
	}
	if terminal(r) {
		return domain.ErrAlreadyFinalized
	}
	if !e.inSnapshot(marketID, delegate) {
		return domain.ErrNotDelegate
	}
	if commitment == (common.Hash{}) {
		return fmt.Errorf("protocol: zero commitment: %w", domain.ErrCommitMismatch)
	}

	now := e.now()
	if now.Before(domain.VoteCommitOpens(r.ProposedAt)) {
		return fmt.Errorf("protocol: vote commit window not open: %w", domain.ErrWindowNotOpen)
	}
	if now.After(domain.VoteCommitCloses(r.ProposedAt)) {
		return fmt.Errorf("protocol: vote commit window over: %w", domain.ErrWindowClosed)
	}

	key := voteKey{marketID, delegate}
	if _, ok := e.voteCommits[key]; ok {
		return domain.ErrAlreadyVoted
	}

	e.voteCommits[key] = &domain.VoteCommit{
		MarketID:    marketID,
		Delegate:    delegate,
		Commitment:  commitment,
		CommittedAt: now,
	}

	e.emit(ctx, domain.EventVoteCommitted, marketID, map[string]any{
		"delegate": delegate.Hex(),
	})
	return nil
}

// RevealVote discloses a delegate's committed vote. The reveal must land in
// the reveal window and reproduce the stored commitment. After each reveal
// the supermajority override check runs, unless a dispute is active — the
// dispute engine outranks the vote.
func (e *Engine) RevealVote(
	ctx context.Context,
	marketID string,
	delegate common.Address,
	support bool,
	salt [32]byte,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return err
	}
	if terminal(r) {
		return domain.ErrAlreadyFinalized
	}

	key := voteKey{marketID, delegate}
	commit, ok := e.voteCommits[key]
	if !ok {
		return fmt.Errorf("protocol: no vote commit: %w", domain.ErrNotFound)
	}
	if commit.Consumed() {
		return domain.ErrCommitConsumed
	}

	now := e.now()
	if now.Before(domain.VoteCommitCloses(r.ProposedAt)) {
		return fmt.Errorf("protocol: reveal window not open: %w", domain.ErrWindowNotOpen)
	}
	if now.After(domain.VoteRevealCloses(r.ProposedAt)) {
		return fmt.Errorf("protocol: reveal window over: %w", domain.ErrWindowClosed)
	}

	recomputed := crypto.VoteCommitment(marketID, support, salt, delegate)
	if recomputed != commit.Commitment {
		return domain.ErrCommitMismatch
	}

	commit.Revealed = true
	if support {
		r.VotesFor++
	} else {
		r.VotesAgainst++
	}

	e.emit(ctx, domain.EventVoteRevealed, marketID, map[string]any{
		"delegate": delegate.Hex(),
		"support":  support,
	})

	e.checkSupermajority(ctx, r)
	return nil
}

// SlashNonRevealingLegislator penalizes a delegate who committed a vote and
// let the reveal window lapse. Callable by anyone. The reputation penalty is
// an external best-effort call; its failure is logged but the non-reveal is
// still marked consumed so it cannot be slashed twice.
func (e *Engine) SlashNonRevealingLegislator(
	ctx context.Context,
	marketID string,
	delegate common.Address,
	caller common.Address,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.resolution(marketID)
	if err != nil {
		return err
	}

	commit, ok := e.voteCommits[voteKey{marketID, delegate}]
	if !ok {
		return domain.ErrNotFound
	}
	if commit.Consumed() {
		return domain.ErrCommitConsumed
	}
	if !e.now().After(domain.VoteRevealCloses(r.ProposedAt)) {
		return fmt.Errorf("protocol: reveal window still open: %w", domain.ErrWindowNotOpen)
	}

	commit.Slashed = true
	e.metrics.VotersSlashed++

	e.isolated(ctx, marketID, "reputation_slash", func() error {
		_, err := e.reputation.Slash(ctx, delegate, domain.ReputationSlashBps)
		return err
	})

	e.emit(ctx, domain.EventVoterSlashed, marketID, map[string]any{
		"delegate": delegate.Hex(),
		"slasher":  caller.Hex(),
		"bps":      domain.ReputationSlashBps,
	})
	return nil
}

// checkSupermajority applies the vote override: a supermajority against
// rejects the resolution outright; a supermajority for promotes it to the
// advisory approved state. Suppressed while any dispute is active.
func (e *Engine) checkSupermajority(ctx context.Context, r *domain.Resolution) {
	if e.hasActiveDispute(r.MarketID) {
		return
	}
	cast := r.VotesFor + r.VotesAgainst
	if cast == 0 {
		return
	}
	if int64(r.VotesAgainst)*domain.BasisPoints >= int64(cast)*domain.SupermajorityBps {
		e.emit(ctx, domain.EventOverride, r.MarketID, map[string]any{
			"direction": "against",
			"for":       r.VotesFor,
			"against":   r.VotesAgainst,
		})
		e.rejectEarly(ctx, r, "vote_supermajority_against")
		return
	}
	if int64(r.VotesFor)*domain.BasisPoints >= int64(cast)*domain.SupermajorityBps {
		if r.Status == domain.ResolutionPending {
			r.Status = domain.ResolutionApproved
		}
		e.emit(ctx, domain.EventOverride, r.MarketID, map[string]any{
			"direction": "for",
			"for":       r.VotesFor,
			"against":   r.VotesAgainst,
		})
	}
}
