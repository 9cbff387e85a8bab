package gateway

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// RosterService implements domain.DelegateRoster over the gateway's delegate
// endpoints. The roster is the output of the external election mechanism;
// this client only reads it.
type RosterService struct {
	c *Client
}

// NewRosterService creates a RosterService on the shared client.
func NewRosterService(c *Client) *RosterService {
	return &RosterService{c: c}
}

type delegateStatus struct {
	Delegate bool   `json:"delegate"`
	Weight   uint64 `json:"weight"`
}

func (s *RosterService) status(ctx context.Context, addr common.Address) (delegateStatus, error) {
	var st delegateStatus
	path := "/v1/delegates/" + url.PathEscape(addr.Hex())
	if err := s.c.get(ctx, path, &st); err != nil {
		return delegateStatus{}, fmt.Errorf("gateway: delegate %s: %w", addr.Hex(), err)
	}
	return st, nil
}

// IsDelegate reports whether addr sits on the current roster.
func (s *RosterService) IsDelegate(ctx context.Context, addr common.Address) (bool, error) {
	st, err := s.status(ctx, addr)
	if err != nil {
		return false, err
	}
	return st.Delegate, nil
}

// VotingWeight returns addr's voting weight, zero for non-delegates.
func (s *RosterService) VotingWeight(ctx context.Context, addr common.Address) (uint64, error) {
	st, err := s.status(ctx, addr)
	if err != nil {
		return 0, err
	}
	return st.Weight, nil
}

// Delegates returns the full current roster.
func (s *RosterService) Delegates(ctx context.Context) ([]domain.Delegate, error) {
	var resp struct {
		Delegates []struct {
			Address string `json:"address"`
			Weight  uint64 `json:"weight"`
		} `json:"delegates"`
	}
	if err := s.c.get(ctx, "/v1/delegates", &resp); err != nil {
		return nil, fmt.Errorf("gateway: list delegates: %w", err)
	}

	delegates := make([]domain.Delegate, 0, len(resp.Delegates))
	for _, d := range resp.Delegates {
		if !common.IsHexAddress(d.Address) {
			return nil, fmt.Errorf("gateway: invalid delegate address %q", d.Address)
		}
		delegates = append(delegates, domain.Delegate{
			Address: common.HexToAddress(d.Address),
			Weight:  d.Weight,
		})
	}
	return delegates, nil
}

var _ domain.DelegateRoster = (*RosterService)(nil)
