package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

func TestSupportAndOpposeAccumulate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)

	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(40)); err != nil {
		t.Fatalf("support: %v", err)
	}
	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(10)); err != nil {
		t.Fatalf("top-up: %v", err)
	}
	if err := h.engine.OpposeResolution(ctx, testMarket, opposer, domain.Tokens(30)); err != nil {
		t.Fatalf("oppose: %v", err)
	}

	r, _ := h.engine.Resolution(testMarket)
	if r.Supporters != 2 {
		t.Fatalf("supporters %d, want 2 (proposer + one staker, top-up not counted)", r.Supporters)
	}
	if r.Opposers != 1 {
		t.Fatalf("opposers %d, want 1", r.Opposers)
	}
	total := domain.Tokens(150) // 100 proposal + 50 support
	if r.SupportStake.Cmp(total) != 0 {
		t.Fatalf("support stake %s, want %s", r.SupportStake, total)
	}
	if r.OppositionStake.Cmp(domain.Tokens(30)) != 0 {
		t.Fatalf("opposition stake %s, want %s", r.OppositionStake, domain.Tokens(30))
	}

	s, err := h.engine.StakeOf(testMarket, supporter, domain.RoleSupport)
	if err != nil {
		t.Fatalf("stake lookup: %v", err)
	}
	if s.Amount.Cmp(domain.Tokens(50)) != 0 {
		t.Fatalf("staker amount %s, want %s", s.Amount, domain.Tokens(50))
	}
	h.solvencyCheck(t)
}

func TestStakeWindowClosed(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)
	h.clock.Advance(domain.SupportWindow + time.Minute)

	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(10)); !errors.Is(err, domain.ErrWindowClosed) {
		t.Fatalf("want ErrWindowClosed, got %v", err)
	}
	if err := h.engine.OpposeResolution(ctx, testMarket, opposer, domain.Tokens(10)); !errors.Is(err, domain.ErrWindowClosed) {
		t.Fatalf("want ErrWindowClosed, got %v", err)
	}
}

func TestSupportBonusDecay(t *testing.T) {
	// Monotonically non-increasing across the whole window, full inside the
	// early window, zero at and past the end.
	points := []struct {
		elapsed time.Duration
		wantMax int64
		wantMin int64
	}{
		{0, domain.MaxTimingBonusBps, domain.MaxTimingBonusBps},
		{domain.EarlyBonusWindow, domain.MaxTimingBonusBps, domain.MaxTimingBonusBps},
		{domain.SupportWindow / 2, domain.MaxTimingBonusBps - 1, 1},
		{domain.SupportWindow, 0, 0},
		{domain.SupportWindow + time.Hour, 0, 0},
	}
	prev := int64(domain.MaxTimingBonusBps)
	for _, p := range points {
		got := supportBonusBps(p.elapsed)
		if got > p.wantMax || got < p.wantMin {
			t.Fatalf("bonus at %s = %d, want in [%d,%d]", p.elapsed, got, p.wantMin, p.wantMax)
		}
		if got > prev {
			t.Fatalf("bonus increased at %s", p.elapsed)
		}
		prev = got
	}
	if supportBonusBps(-time.Hour) != 0 {
		t.Fatal("stake before proposal time earns nothing")
	}
}

func TestBonusFixedAtFirstContribution(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)

	// First contribution late in the window locks a small bonus.
	h.clock.Advance(domain.SupportWindow - 2*time.Hour)
	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(10)); err != nil {
		t.Fatalf("support: %v", err)
	}
	first, _ := h.engine.StakeOf(testMarket, supporter, domain.RoleSupport)

	// A top-up keeps the original bonus.
	h.clock.Advance(time.Hour)
	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(10)); err != nil {
		t.Fatalf("top-up: %v", err)
	}
	second, _ := h.engine.StakeOf(testMarket, supporter, domain.RoleSupport)
	if second.BonusBps != first.BonusBps {
		t.Fatalf("bonus changed on top-up: %d -> %d", first.BonusBps, second.BonusBps)
	}
}

func TestAutoApprovalAdvisory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commitAndPropose(t, 1)

	// 100 support (proposer) vs 40 opposition: 71% — below threshold.
	if err := h.engine.OpposeResolution(ctx, testMarket, opposer, domain.Tokens(40)); err != nil {
		t.Fatalf("oppose: %v", err)
	}
	r, _ := h.engine.Resolution(testMarket)
	if r.Status != domain.ResolutionPending {
		t.Fatalf("status %s, want pending below threshold", r.Status)
	}

	// Another 60 support: 160/200 = 80% — crosses 75%.
	if err := h.engine.SupportResolution(ctx, testMarket, supporter, domain.Tokens(60)); err != nil {
		t.Fatalf("support: %v", err)
	}
	r, _ = h.engine.Resolution(testMarket)
	if r.Status != domain.ResolutionApproved {
		t.Fatalf("status %s, want advisory approved", r.Status)
	}
	if r.Finalized {
		t.Fatal("auto-approval must not finalize")
	}
	if !h.sink.has(domain.EventAutoApproved) {
		t.Fatal("auto-approval event missing")
	}
}

func TestStakeOnUnknownMarket(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	if err := h.engine.SupportResolution(ctx, "nope", supporter, domain.Tokens(10)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
