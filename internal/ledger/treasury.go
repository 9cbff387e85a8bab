// Package ledger implements the protocol's internal treasury accounting: a
// custodied-funds counter, an earmarked-funds counter, and the accrued
// protocol fee, with the solvency invariant that custodied funds never fall
// below what is earmarked for payouts plus accrued fees.
package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// Treasury tracks funds held on behalf of the protocol. All mutation goes
// through checked operations; raw counters are never exposed for writing.
type Treasury struct {
	mu        sync.Mutex
	custodied *big.Int
	earmarked *big.Int
	fees      *big.Int
	burned    *big.Int
}

// NewTreasury returns an empty treasury.
func NewTreasury() *Treasury {
	return &Treasury{
		custodied: new(big.Int),
		earmarked: new(big.Int),
		fees:      new(big.Int),
		burned:    new(big.Int),
	}
}

// Deposit records amount arriving into custody, earmarked for protocol
// payouts.
func (t *Treasury) Deposit(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.custodied.Add(t.custodied, amount)
	t.earmarked.Add(t.earmarked, amount)
	return nil
}

// Payout releases amount from custody to a participant. It fails with
// ErrInsolvent if the earmarked pool cannot cover it; no partial payouts.
func (t *Treasury) Payout(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.earmarked.Cmp(amount) < 0 || t.custodied.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: payout %s exceeds earmarked %s: %w",
			amount, t.earmarked, domain.ErrInsolvent)
	}
	t.earmarked.Sub(t.earmarked, amount)
	t.custodied.Sub(t.custodied, amount)
	return nil
}

// TakeFee moves amount from the earmarked pool into the accrued protocol
// fee. The funds stay custodied.
func (t *Treasury) TakeFee(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.earmarked.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: fee %s exceeds earmarked %s: %w",
			amount, t.earmarked, domain.ErrInsolvent)
	}
	t.earmarked.Sub(t.earmarked, amount)
	t.fees.Add(t.fees, amount)
	return nil
}

// Burn permanently removes amount from the earmarked pool and from custody.
// Used for forfeited bonds net of the slash bounty.
func (t *Treasury) Burn(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return domain.ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.earmarked.Cmp(amount) < 0 || t.custodied.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: burn %s exceeds earmarked %s: %w",
			amount, t.earmarked, domain.ErrInsolvent)
	}
	t.earmarked.Sub(t.earmarked, amount)
	t.custodied.Sub(t.custodied, amount)
	t.burned.Add(t.burned, amount)
	return nil
}

// WithdrawFees releases the accrued protocol fee. Returns the amount
// withdrawn.
func (t *Treasury) WithdrawFees() (*big.Int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := new(big.Int).Set(t.fees)
	if t.custodied.Cmp(out) < 0 {
		return nil, fmt.Errorf("ledger: fee withdrawal %s exceeds custodied %s: %w",
			out, t.custodied, domain.ErrInsolvent)
	}
	t.custodied.Sub(t.custodied, out)
	t.fees.SetInt64(0)
	return out, nil
}

// Solvent verifies the invariant custodied >= earmarked + fees. It is
// asserted on entry to every value-moving protocol operation.
func (t *Treasury) Solvent() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	need := new(big.Int).Add(t.earmarked, t.fees)
	if t.custodied.Cmp(need) < 0 {
		return fmt.Errorf("ledger: custodied %s < earmarked %s + fees %s: %w",
			t.custodied, t.earmarked, t.fees, domain.ErrInsolvent)
	}
	return nil
}

// Custodied returns a copy of the custodied-funds counter.
func (t *Treasury) Custodied() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.custodied)
}

// Earmarked returns a copy of the earmarked-funds counter.
func (t *Treasury) Earmarked() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.earmarked)
}

// Fees returns a copy of the accrued protocol fee.
func (t *Treasury) Fees() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.fees)
}

// Burned returns a copy of the cumulative burned amount.
func (t *Treasury) Burned() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.burned)
}
