package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VoteCommit is a delegate's commitment in the voting phase. Structurally a
// ResolutionCommit without a bond, gated by the delegate roster snapshotted
// at proposal time.
type VoteCommit struct {
	MarketID    string
	Delegate    common.Address
	Commitment  common.Hash
	CommittedAt time.Time
	Revealed    bool
	// Slashed marks a non-reveal already penalized.
	Slashed bool
}

// Consumed reports whether the vote commit can no longer be revealed or
// slashed.
func (c *VoteCommit) Consumed() bool {
	return c.Revealed || c.Slashed
}

// VoteWindows are anchored at the resolution's proposal time: the commit
// window opens when the support window closes.
func VoteCommitOpens(proposedAt time.Time) time.Time {
	return proposedAt.Add(SupportWindow)
}

// VoteCommitCloses returns the end of the vote commit window.
func VoteCommitCloses(proposedAt time.Time) time.Time {
	return VoteCommitOpens(proposedAt).Add(VoteCommitWindow)
}

// VoteRevealCloses returns the end of the vote reveal window.
func VoteRevealCloses(proposedAt time.Time) time.Time {
	return VoteCommitCloses(proposedAt).Add(VoteRevealWindow)
}
