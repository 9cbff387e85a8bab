package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MarketPhase is the external market's own resolution-state machine. The
// protocol mirrors its progress into the market best-effort; the protocol's
// local state is the source of truth.
type MarketPhase string

const (
	PhaseTrading       MarketPhase = "trading"
	PhaseSettlement    MarketPhase = "settlement"
	PhaseProposed      MarketPhase = "proposed"
	PhaseDisputeWindow MarketPhase = "dispute_window"
	PhaseResolved      MarketPhase = "resolved"
)

// MarketClient is the external market contract boundary.
type MarketClient interface {
	Phase(ctx context.Context, marketID string) (MarketPhase, error)
	// AdvancePhase moves the market one step along its state machine.
	AdvancePhase(ctx context.Context, marketID string) error
	// Revert returns the market to the settlement phase for a fresh
	// proposal cycle.
	Revert(ctx context.Context, marketID string) error
	SetFinalOutcome(ctx context.Context, marketID string, outcome Outcome) error

	TradingEndsAt(ctx context.Context, marketID string) (time.Time, error)
	OutcomeCount(ctx context.Context, marketID string) (int, error)
	TotalStake(ctx context.Context, marketID string) (*big.Int, error)

	// PriceFeedID returns the market's price feed identifier, or "" for
	// markets that are not price-linked.
	PriceFeedID(ctx context.Context, marketID string) (string, error)
	PriceAsset(ctx context.Context, marketID string) (string, error)
}

// Delegate is one roster entry with its voting weight.
type Delegate struct {
	Address common.Address
	Weight  uint64
}

// DelegateRoster is the external election mechanism's output.
type DelegateRoster interface {
	IsDelegate(ctx context.Context, addr common.Address) (bool, error)
	VotingWeight(ctx context.Context, addr common.Address) (uint64, error)
	Delegates(ctx context.Context) ([]Delegate, error)
}

// ReputationLedger is the external reputation token boundary. Slash applies
// a basis-point penalty and returns the amount slashed.
type ReputationLedger interface {
	BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error)
	Slash(ctx context.Context, addr common.Address, bps int64) (*big.Int, error)
}

// RecordedPrice is one oracle observation.
type RecordedPrice struct {
	FeedID     string
	Asset      string
	Value      *big.Int
	RecordedAt time.Time
	Round      uint64
	Recorded   bool
	Stale      bool
}

// PriceOracle records and serves price observations for price-linked
// markets. Binding a price at proposal time is best-effort.
type PriceOracle interface {
	RecordPrice(ctx context.Context, feedID, asset string) error
	RecordedPrice(ctx context.Context, feedID string) (RecordedPrice, error)
}
