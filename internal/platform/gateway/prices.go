package gateway

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
)

// PriceService reads the gateway's oracle feed endpoints. It is the source
// behind the Redis price oracle's RecordPrice.
type PriceService struct {
	c *Client
}

// NewPriceService creates a PriceService on the shared client.
func NewPriceService(c *Client) *PriceService {
	return &PriceService{c: c}
}

// LatestPrice returns the newest observation for a feed.
func (s *PriceService) LatestPrice(ctx context.Context, feedID, asset string) (*big.Int, uint64, error) {
	var resp struct {
		Value string `json:"value"`
		Round uint64 `json:"round"`
	}
	path := "/v1/feeds/" + url.PathEscape(feedID) + "/latest"
	if asset != "" {
		path += "?asset=" + url.QueryEscape(asset)
	}
	if err := s.c.get(ctx, path, &resp); err != nil {
		return nil, 0, fmt.Errorf("gateway: latest price %s: %w", feedID, err)
	}

	value, ok := new(big.Int).SetString(resp.Value, 10)
	if !ok {
		return nil, 0, fmt.Errorf("gateway: parse price %q for feed %s", resp.Value, feedID)
	}
	return value, resp.Round, nil
}
