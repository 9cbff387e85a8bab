package redis

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// PriceSource fetches the latest observation for a price feed. The chain
// gateway client implements it.
type PriceSource interface {
	LatestPrice(ctx context.Context, feedID, asset string) (value *big.Int, round uint64, err error)
}

// defaultStaleAfter marks a recorded observation stale once it is older than
// this.
const defaultStaleAfter = 15 * time.Minute

// PriceOracle implements domain.PriceOracle: RecordPrice pulls the latest
// observation from the source and pins it in Redis under the feed ID, so the
// price a proposal was judged against survives process restarts. Each feed
// is a hash at "adjudicator:feed:{feedID}".
type PriceOracle struct {
	rdb        *redis.Client
	source     PriceSource
	staleAfter time.Duration
}

// NewPriceOracle creates a PriceOracle backed by the given Client and
// source.
func NewPriceOracle(c *Client, source PriceSource) *PriceOracle {
	return &PriceOracle{
		rdb:        c.Underlying(),
		source:     source,
		staleAfter: defaultStaleAfter,
	}
}

func feedKey(feedID string) string {
	return "adjudicator:feed:" + feedID
}

// RecordPrice fetches the feed's latest observation and stores it. Re-recording
// a feed overwrites the previous pin; the engine only records at proposal
// time, so in practice each feed is pinned once per resolution cycle.
func (po *PriceOracle) RecordPrice(ctx context.Context, feedID, asset string) error {
	value, round, err := po.source.LatestPrice(ctx, feedID, asset)
	if err != nil {
		return fmt.Errorf("redis: fetch price %s: %w", feedID, err)
	}

	fields := map[string]interface{}{
		"value": value.String(),
		"asset": asset,
		"round": strconv.FormatUint(round, 10),
		"ts":    strconv.FormatInt(time.Now().UnixNano(), 10),
	}
	if err := po.rdb.HSet(ctx, feedKey(feedID), fields).Err(); err != nil {
		return fmt.Errorf("redis: record price %s: %w", feedID, err)
	}
	return nil
}

// RecordedPrice returns the pinned observation for a feed. A feed that was
// never recorded comes back with Recorded=false and no error.
func (po *PriceOracle) RecordedPrice(ctx context.Context, feedID string) (domain.RecordedPrice, error) {
	vals, err := po.rdb.HGetAll(ctx, feedKey(feedID)).Result()
	if err != nil {
		return domain.RecordedPrice{}, fmt.Errorf("redis: get price %s: %w", feedID, err)
	}
	if len(vals) == 0 {
		return domain.RecordedPrice{FeedID: feedID}, nil
	}

	value, ok := new(big.Int).SetString(vals["value"], 10)
	if !ok {
		return domain.RecordedPrice{}, fmt.Errorf("redis: parse price value %q for %s", vals["value"], feedID)
	}
	round, err := strconv.ParseUint(vals["round"], 10, 64)
	if err != nil {
		return domain.RecordedPrice{}, fmt.Errorf("redis: parse round for %s: %w", feedID, err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.RecordedPrice{}, fmt.Errorf("redis: parse ts for %s: %w", feedID, err)
	}

	recordedAt := time.Unix(0, tsNano)
	return domain.RecordedPrice{
		FeedID:     feedID,
		Asset:      vals["asset"],
		Value:      value,
		RecordedAt: recordedAt,
		Round:      round,
		Recorded:   true,
		Stale:      time.Since(recordedAt) > po.staleAfter,
	}, nil
}

// Compile-time interface check.
var _ domain.PriceOracle = (*PriceOracle)(nil)
