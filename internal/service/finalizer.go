// Package service holds the background workers that keep resolutions moving
// without operator intervention.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// finalizeLockTTL bounds how long one instance holds a market's finalization
// lock.
const finalizeLockTTL = 30 * time.Second

// FinalizerEngine is the slice of the engine the finalizer needs.
type FinalizerEngine interface {
	DueForFinalization() []string
	FinalizeResolution(ctx context.Context, marketID string, caller common.Address) error
}

// Finalizer polls for resolutions whose dispute window and buffer have
// passed and settles them, so payouts do not wait for the first claimant.
// Multi-instance deployments serialize per market through the lock manager.
type Finalizer struct {
	engine   FinalizerEngine
	locks    domain.LockManager
	operator common.Address
	pollDur  time.Duration
	logger   *slog.Logger
}

// NewFinalizer creates a Finalizer. pollInterval is how often due
// resolutions are swept; operator is recorded as the finalizing caller.
func NewFinalizer(
	engine FinalizerEngine,
	locks domain.LockManager,
	operator common.Address,
	pollInterval time.Duration,
	logger *slog.Logger,
) *Finalizer {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &Finalizer{
		engine:   engine,
		locks:    locks,
		operator: operator,
		pollDur:  pollInterval,
		logger:   logger.With(slog.String("component", "finalizer")),
	}
}

// Run sweeps due resolutions until the context is cancelled. Call in a
// goroutine.
func (f *Finalizer) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.pollDur)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.sweep(ctx)
		}
	}
}

// sweep finalizes every due resolution, skipping markets another instance
// holds the lock for.
func (f *Finalizer) sweep(ctx context.Context) {
	for _, marketID := range f.engine.DueForFinalization() {
		if err := f.finalizeOne(ctx, marketID); err != nil {
			f.logger.ErrorContext(ctx, "finalize failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (f *Finalizer) finalizeOne(ctx context.Context, marketID string) error {
	if f.locks != nil {
		unlock, err := f.locks.Acquire(ctx, "finalize:"+marketID, finalizeLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				return nil
			}
			return err
		}
		defer unlock()
	}

	err := f.engine.FinalizeResolution(ctx, marketID, f.operator)
	if err != nil {
		// Another caller settled it between the sweep and the lock.
		if errors.Is(err, domain.ErrAlreadyFinalized) {
			return nil
		}
		return err
	}

	f.logger.InfoContext(ctx, "resolution finalized",
		slog.String("market_id", marketID),
	)
	return nil
}
