package ledger

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

func TestTreasuryAccountingFlow(t *testing.T) {
	tr := NewTreasury()

	if err := tr.Deposit(big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := tr.TakeFee(big.NewInt(25)); err != nil {
		t.Fatalf("fee: %v", err)
	}
	if err := tr.Payout(big.NewInt(600)); err != nil {
		t.Fatalf("payout: %v", err)
	}
	if err := tr.Burn(big.NewInt(100)); err != nil {
		t.Fatalf("burn: %v", err)
	}

	if got := tr.Custodied(); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("custodied %s, want 300", got)
	}
	if got := tr.Earmarked(); got.Cmp(big.NewInt(275)) != 0 {
		t.Fatalf("earmarked %s, want 275", got)
	}
	if got := tr.Fees(); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("fees %s, want 25", got)
	}
	if got := tr.Burned(); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("burned %s, want 100", got)
	}
	if err := tr.Solvent(); err != nil {
		t.Fatalf("solvency: %v", err)
	}

	out, err := tr.WithdrawFees()
	if err != nil {
		t.Fatalf("withdraw fees: %v", err)
	}
	if out.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("withdrawn %s, want 25", out)
	}
	if tr.Fees().Sign() != 0 {
		t.Fatalf("fees not reset: %s", tr.Fees())
	}
	if got := tr.Custodied(); got.Cmp(big.NewInt(275)) != 0 {
		t.Fatalf("custodied after withdrawal %s, want 275", got)
	}
}

func TestTreasuryRejectsOverdraw(t *testing.T) {
	tr := NewTreasury()
	if err := tr.Deposit(big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if err := tr.Payout(big.NewInt(101)); !errors.Is(err, domain.ErrInsolvent) {
		t.Fatalf("overdraw payout: want ErrInsolvent, got %v", err)
	}
	if err := tr.TakeFee(big.NewInt(101)); !errors.Is(err, domain.ErrInsolvent) {
		t.Fatalf("overdraw fee: want ErrInsolvent, got %v", err)
	}
	if err := tr.Burn(big.NewInt(101)); !errors.Is(err, domain.ErrInsolvent) {
		t.Fatalf("overdraw burn: want ErrInsolvent, got %v", err)
	}
	// A failed operation leaves the counters untouched.
	if got := tr.Custodied(); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("custodied %s, want 100", got)
	}
	if got := tr.Earmarked(); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("earmarked %s, want 100", got)
	}
}

func TestTreasuryInputValidation(t *testing.T) {
	tr := NewTreasury()

	if err := tr.Deposit(nil); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("nil deposit: want ErrInvalidAmount, got %v", err)
	}
	if err := tr.Deposit(big.NewInt(0)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("zero deposit: want ErrInvalidAmount, got %v", err)
	}
	if err := tr.Deposit(big.NewInt(-5)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("negative deposit: want ErrInvalidAmount, got %v", err)
	}
	if err := tr.Payout(big.NewInt(-5)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("negative payout: want ErrInvalidAmount, got %v", err)
	}

	// Zero payout, fee, and burn are no-ops.
	if err := tr.Payout(big.NewInt(0)); err != nil {
		t.Fatalf("zero payout: %v", err)
	}
	if err := tr.TakeFee(big.NewInt(0)); err != nil {
		t.Fatalf("zero fee: %v", err)
	}
	if err := tr.Burn(big.NewInt(0)); err != nil {
		t.Fatalf("zero burn: %v", err)
	}
}

func TestTreasuryGettersCopy(t *testing.T) {
	tr := NewTreasury()
	if err := tr.Deposit(big.NewInt(50)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	got := tr.Custodied()
	got.SetInt64(0)
	if tr.Custodied().Cmp(big.NewInt(50)) != 0 {
		t.Fatal("getter leaked internal counter")
	}
}

func TestTreasuryConcurrentDeposits(t *testing.T) {
	tr := NewTreasury()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tr.Deposit(big.NewInt(10)); err != nil {
				t.Errorf("deposit: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := tr.Custodied(); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("custodied %s, want 500", got)
	}
	if err := tr.Solvent(); err != nil {
		t.Fatalf("solvency: %v", err)
	}
}
