package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DisputeStatus is the lifecycle state of a Dispute.
type DisputeStatus string

const (
	// DisputeActive is accruing support and endorsements.
	DisputeActive DisputeStatus = "active"
	// DisputeUpheld won finalization scoring against the resolution.
	DisputeUpheld DisputeStatus = "upheld"
	// DisputeRejected lost finalization scoring.
	DisputeRejected DisputeStatus = "rejected"
)

// Dispute is a bonded counter-proposal. Disputes form an ordered,
// append-only list per market; the index in that list is the dispute's
// identity for support, endorsement, and claims.
type Dispute struct {
	MarketID   string
	Index      int
	Challenger common.Address
	Outcome    Outcome
	// Bond is the challenger's own stake, included in SupportStake.
	Bond         *big.Int
	SupportStake *big.Int
	Supporters   int
	Endorsements int
	Status       DisputeStatus
	Evidence     EvidenceRef
	FiledAt      time.Time

	// Payout terms, fixed at finalization for upheld disputes.
	ChallengerBonus  *big.Int
	BackerRewardRate *big.Int
	BonusClaimed     bool
}

// Pool returns the dispute's combined pool (challenger bond plus supporter
// stake; the bond is recorded inside SupportStake).
func (d *Dispute) Pool() *big.Int {
	return new(big.Int).Set(d.SupportStake)
}

// EvidenceChallenge is a stake-backed objection to a proposal's evidence,
// adjudicated by a delegate or the oracle manager.
type EvidenceChallenge struct {
	MarketID   string
	Index      int
	Challenger common.Address
	Reason     string
	Stake      *big.Int
	FiledAt    time.Time
	Resolved   bool
	Upheld     bool
}
