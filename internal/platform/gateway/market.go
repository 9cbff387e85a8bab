package gateway

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// MarketService implements domain.MarketClient over the gateway's market
// endpoints. Reads go through one snapshot endpoint; the mutating calls map
// to the contract's phase transitions.
type MarketService struct {
	c *Client
}

// NewMarketService creates a MarketService on the shared client.
func NewMarketService(c *Client) *MarketService {
	return &MarketService{c: c}
}

// marketSnapshot is the gateway's view of one market.
type marketSnapshot struct {
	ID           string    `json:"id"`
	Phase        string    `json:"phase"`
	TradingEnd   time.Time `json:"trading_ends_at"`
	OutcomeCount int       `json:"outcome_count"`
	TotalStake   string    `json:"total_stake"`
	PriceFeedID  string    `json:"price_feed_id"`
	PriceAsset   string    `json:"price_asset"`
}

func (s *MarketService) snapshot(ctx context.Context, marketID string) (marketSnapshot, error) {
	var snap marketSnapshot
	path := "/v1/markets/" + url.PathEscape(marketID)
	if err := s.c.get(ctx, path, &snap); err != nil {
		return marketSnapshot{}, fmt.Errorf("gateway: market %s: %w", marketID, err)
	}
	return snap, nil
}

// Phase returns the market's current resolution phase.
func (s *MarketService) Phase(ctx context.Context, marketID string) (domain.MarketPhase, error) {
	snap, err := s.snapshot(ctx, marketID)
	if err != nil {
		return "", err
	}
	return domain.MarketPhase(snap.Phase), nil
}

// AdvancePhase moves the market one step along its state machine.
func (s *MarketService) AdvancePhase(ctx context.Context, marketID string) error {
	path := "/v1/markets/" + url.PathEscape(marketID) + "/advance"
	if err := s.c.post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("gateway: advance market %s: %w", marketID, err)
	}
	return nil
}

// Revert returns the market to the settlement phase for a fresh proposal
// cycle.
func (s *MarketService) Revert(ctx context.Context, marketID string) error {
	path := "/v1/markets/" + url.PathEscape(marketID) + "/revert"
	if err := s.c.post(ctx, path, nil, nil); err != nil {
		return fmt.Errorf("gateway: revert market %s: %w", marketID, err)
	}
	return nil
}

// SetFinalOutcome writes the settled outcome to the market contract.
func (s *MarketService) SetFinalOutcome(ctx context.Context, marketID string, outcome domain.Outcome) error {
	path := "/v1/markets/" + url.PathEscape(marketID) + "/outcome"
	req := struct {
		Outcome uint8 `json:"outcome"`
	}{Outcome: uint8(outcome)}
	if err := s.c.post(ctx, path, req, nil); err != nil {
		return fmt.Errorf("gateway: set outcome for market %s: %w", marketID, err)
	}
	return nil
}

// TradingEndsAt returns when the market's trading phase closed or closes.
func (s *MarketService) TradingEndsAt(ctx context.Context, marketID string) (time.Time, error) {
	snap, err := s.snapshot(ctx, marketID)
	if err != nil {
		return time.Time{}, err
	}
	return snap.TradingEnd, nil
}

// OutcomeCount returns the number of outcomes the market admits.
func (s *MarketService) OutcomeCount(ctx context.Context, marketID string) (int, error) {
	snap, err := s.snapshot(ctx, marketID)
	if err != nil {
		return 0, err
	}
	return snap.OutcomeCount, nil
}

// TotalStake returns the market's open-interest stake in base units.
func (s *MarketService) TotalStake(ctx context.Context, marketID string) (*big.Int, error) {
	snap, err := s.snapshot(ctx, marketID)
	if err != nil {
		return nil, err
	}
	stake, ok := new(big.Int).SetString(snap.TotalStake, 10)
	if !ok {
		return nil, fmt.Errorf("gateway: parse total stake %q for market %s", snap.TotalStake, marketID)
	}
	return stake, nil
}

// PriceFeedID returns the market's price feed identifier, or "" for markets
// that are not price-linked.
func (s *MarketService) PriceFeedID(ctx context.Context, marketID string) (string, error) {
	snap, err := s.snapshot(ctx, marketID)
	if err != nil {
		return "", err
	}
	return snap.PriceFeedID, nil
}

// PriceAsset returns the asset symbol behind a price-linked market.
func (s *MarketService) PriceAsset(ctx context.Context, marketID string) (string, error) {
	snap, err := s.snapshot(ctx, marketID)
	if err != nil {
		return "", err
	}
	return snap.PriceAsset, nil
}

var _ domain.MarketClient = (*MarketService)(nil)
