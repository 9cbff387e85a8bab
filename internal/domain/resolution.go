package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Outcome is a market outcome code. Zero is never a valid outcome; valid
// codes run from 1 to the market's reported outcome count.
type Outcome uint8

// OutcomeNone is the unset outcome.
const OutcomeNone Outcome = 0

// ResolutionStatus is the lifecycle state of a Resolution.
type ResolutionStatus string

const (
	// ResolutionPending is the state from reveal until finalization or an
	// advisory approval.
	ResolutionPending ResolutionStatus = "pending"
	// ResolutionApproved is advisory: support stake or delegate votes favor
	// the proposal, but only finalization is binding.
	ResolutionApproved ResolutionStatus = "approved"
	// ResolutionRejected means the proposal lost: an upheld evidence
	// challenge, a delegate supermajority against, or a winning dispute.
	ResolutionRejected ResolutionStatus = "rejected"
	// ResolutionFinalized means the proposed outcome stands and reward
	// rates are fixed.
	ResolutionFinalized ResolutionStatus = "finalized"
)

// EvidenceRef points at the material backing a proposal or dispute.
type EvidenceRef struct {
	URI  string
	Hash common.Hash
}

// Resolution is the per-market settlement record. It is created on a
// successful reveal, mutated by staking, voting, and dispute resolution, and
// retained forever for audit and claim settlement.
type Resolution struct {
	MarketID   string
	Proposer   common.Address
	Outcome    Outcome
	ProposedAt time.Time
	Evidence   EvidenceRef

	SupportStake    *big.Int
	OppositionStake *big.Int
	Supporters      int
	Opposers        int

	VotesFor     int
	VotesAgainst int

	Status    ResolutionStatus
	Disputed  bool
	Finalized bool

	// ProposerBonusBps is the early-reveal timing bonus fixed at proposal.
	ProposerBonusBps int64

	// Reward rates, fixed at finalization, scaled by RateScale.
	SupportRewardRate    *big.Int
	OppositionRewardRate *big.Int

	FinalizedAt time.Time
}

// RateScale is the fixed-point scale for reward rates: a participant's
// reward is weight * rate / RateScale.
var RateScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ResolutionCommit is one bonded commitment to propose an outcome. Exactly
// one unconsumed commit per (market, committer) is allowed at a time.
type ResolutionCommit struct {
	MarketID   string
	Committer  common.Address
	Commitment common.Hash
	Bond       *big.Int
	CommittedAt time.Time
	// Revealed marks the commit consumed by a reveal.
	Revealed bool
	// Slashed marks the commit consumed by a post-deadline slash.
	Slashed bool
}

// Consumed reports whether the commit can no longer be revealed or slashed.
func (c *ResolutionCommit) Consumed() bool {
	return c.Revealed || c.Slashed
}

// RevealOpen reports whether now falls inside the commit's reveal window.
func (c *ResolutionCommit) RevealOpen(now time.Time) bool {
	return !now.Before(c.CommittedAt.Add(MinRevealDelay)) &&
		!now.After(c.CommittedAt.Add(MaxRevealDelay))
}

// SupportWindowEnd returns when the resolution stops accepting stake.
func (r *Resolution) SupportWindowEnd() time.Time {
	return r.ProposedAt.Add(SupportWindow)
}

// DisputeWindowEnd returns when the resolution stops accepting disputes.
func (r *Resolution) DisputeWindowEnd() time.Time {
	return r.ProposedAt.Add(DisputeWindow)
}

// FinalizableAt returns the earliest finalization time: the dispute window
// plus the buffer, and never before the vote reveal window has closed, so a
// committed delegate cannot be locked out of revealing and then slashed for
// it.
func (r *Resolution) FinalizableAt() time.Time {
	at := r.DisputeWindowEnd().Add(FinalizeBuffer)
	if reveal := VoteRevealCloses(r.ProposedAt); reveal.After(at) {
		at = reveal
	}
	return at
}

// CombinedStake returns support + opposition stake.
func (r *Resolution) CombinedStake() *big.Int {
	return new(big.Int).Add(r.SupportStake, r.OppositionStake)
}
