package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// StakeRole distinguishes which side of a resolution a stake backs.
type StakeRole string

const (
	RoleSupport    StakeRole = "support"
	RoleOpposition StakeRole = "opposition"
)

// Stake is one participant's cumulative position on one side of a market's
// resolution, or behind one dispute. A withdrawn stake can never be topped
// up or claimed again.
type Stake struct {
	MarketID    string
	Participant common.Address
	Role        StakeRole
	Amount      *big.Int
	// BonusBps is the timing bonus locked in at first contribution;
	// supporters only.
	BonusBps  int64
	StakedAt  time.Time
	Withdrawn bool
}

// Weight returns the stake's reward weight: amount scaled up by its timing
// bonus.
func (s *Stake) Weight() *big.Int {
	w := new(big.Int).Mul(s.Amount, big.NewInt(BasisPoints+s.BonusBps))
	return w.Div(w, big.NewInt(BasisPoints))
}
