package gateway

import (
	"context"
	"fmt"
	"math/big"
	"net/url"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// ReputationService implements domain.ReputationLedger over the gateway's
// reputation token endpoints.
type ReputationService struct {
	c *Client
}

// NewReputationService creates a ReputationService on the shared client.
func NewReputationService(c *Client) *ReputationService {
	return &ReputationService{c: c}
}

// BalanceOf returns addr's reputation token balance in base units.
func (s *ReputationService) BalanceOf(ctx context.Context, addr common.Address) (*big.Int, error) {
	var resp struct {
		Balance string `json:"balance"`
	}
	path := "/v1/reputation/" + url.PathEscape(addr.Hex())
	if err := s.c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("gateway: reputation balance %s: %w", addr.Hex(), err)
	}

	balance, ok := new(big.Int).SetString(resp.Balance, 10)
	if !ok {
		return nil, fmt.Errorf("gateway: parse reputation balance %q for %s", resp.Balance, addr.Hex())
	}
	return balance, nil
}

// Slash applies a basis-point penalty to addr's reputation balance and
// returns the amount slashed.
func (s *ReputationService) Slash(ctx context.Context, addr common.Address, bps int64) (*big.Int, error) {
	req := struct {
		Bps int64 `json:"bps"`
	}{Bps: bps}
	var resp struct {
		Slashed string `json:"slashed"`
	}
	path := "/v1/reputation/" + url.PathEscape(addr.Hex()) + "/slash"
	if err := s.c.post(ctx, path, req, &resp); err != nil {
		return nil, fmt.Errorf("gateway: slash reputation %s: %w", addr.Hex(), err)
	}

	slashed, ok := new(big.Int).SetString(resp.Slashed, 10)
	if !ok {
		return nil, fmt.Errorf("gateway: parse slashed amount %q for %s", resp.Slashed, addr.Hex())
	}
	return slashed, nil
}

var _ domain.ReputationLedger = (*ReputationService)(nil)
