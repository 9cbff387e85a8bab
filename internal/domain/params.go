package domain

import (
	"math/big"
	"time"
)

// BasisPoints is the protocol-wide fixed-point scale for percentage math:
// 10000 = 100%. All percentage arithmetic is integer arithmetic against this
// constant; the protocol uses no floating point for value computation.
const BasisPoints = 10_000

// TokenUnit is the number of base units in one whole native token. Dispute
// scoring takes square roots over whole-token quantities, not base units.
var TokenUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Phase windows. All windows are absolute-timestamp bounds anchored at the
// commit or proposal time; they are protocol constants, never per-call
// configuration.
const (
	// MinRevealDelay is the earliest a committed resolution may be revealed.
	MinRevealDelay = 10 * time.Minute
	// MaxRevealDelay is the reveal deadline; past it the commit is slashable.
	MaxRevealDelay = 24 * time.Hour
	// CommitCooldown is the global per-caller spacing between commits,
	// across all markets.
	CommitCooldown = 1 * time.Hour

	// SupportWindow is how long after the proposal support and opposition
	// stake is accepted.
	SupportWindow = 48 * time.Hour
	// EarlyBonusWindow is the initial slice of the support window during
	// which supporters earn the full timing bonus.
	EarlyBonusWindow = 1 * time.Hour

	// EvidenceWindow is how long after the proposal evidence challenges are
	// accepted.
	EvidenceWindow = 12 * time.Hour

	// VoteCommitWindow opens when the support window closes.
	VoteCommitWindow = 24 * time.Hour
	// VoteRevealWindow follows the vote commit window.
	VoteRevealWindow = 12 * time.Hour

	// DisputeWindow is how long after the proposal counter-proposals are
	// accepted.
	DisputeWindow = 72 * time.Hour
	// FinalizeBuffer is the quiet period after the dispute window before a
	// resolution may be finalized.
	FinalizeBuffer = 6 * time.Hour
)

// Percentage parameters, in basis points.
const (
	// ProtocolFeeBps is taken from the combined support+opposition pool at
	// finalization.
	ProtocolFeeBps = 250
	// SlashBountyBps of a forfeited commit bond is paid to the slasher.
	SlashBountyBps = 1_000
	// SupermajorityBps of revealed delegate votes overrides the staking
	// outcome in either direction.
	SupermajorityBps = 6_666
	// AutoApproveBps of combined stake on the support side promotes a
	// pending resolution to the advisory approved state.
	AutoApproveBps = 7_500
	// ChallengerBonusBps of an upheld dispute's pool is paid to its
	// challenger, capped at ChallengerBonusCapBps of the pool.
	ChallengerBonusBps    = 3_000
	ChallengerBonusCapBps = 5_000
	// ReputationSlashBps is the penalty applied to a delegate who commits a
	// vote and fails to reveal it.
	ReputationSlashBps = 500
	// MaxTimingBonusBps is the reward weight bonus for the earliest
	// supporters, decaying linearly to zero over the support window.
	MaxTimingBonusBps = 1_000
)

// Dispute scoring parameters.
const (
	// StakeScoreWeightBps weights the sqrt(stake)*backers term.
	StakeScoreWeightBps = 6_000
	// VoteScoreWeightBps weights the delegate vote/endorsement term.
	VoteScoreWeightBps = 4_000
	// VoteScoreUnit is the score contributed by a single delegate vote or
	// endorsement before weighting.
	VoteScoreUnit = 100
	// MaxScoredBackers caps the backer-count multiplier in the stake term.
	MaxScoredBackers = 10
)

// Bounds.
const (
	// MaxEvidenceChallenges bounds outstanding challenges per market.
	MaxEvidenceChallenges = 10
	// MaxEvidenceURILen bounds the evidence reference length.
	MaxEvidenceURILen = 512
)

// Minimum amounts, in base units.
var (
	MinCommitBond     = Tokens(10)
	MinProposalStake  = Tokens(100)
	MinSupportStake   = Tokens(1)
	MinChallengeStake = Tokens(25)
	// DisputeBondFloor and DisputeBondCap clamp the dynamically computed
	// dispute bond.
	DisputeBondFloor = Tokens(50)
	DisputeBondCap   = Tokens(100_000)
)

// Tokens converts a whole-token count to base units.
func Tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), TokenUnit)
}
