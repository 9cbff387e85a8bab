package protocol

import "math/big"

// Metrics are cumulative protocol counters, mutated only under the engine
// mutex.
type Metrics struct {
	ResolutionsProposed  int64
	ResolutionsFinalized int64
	ResolutionsRejected  int64
	DisputesFiled        int64
	DisputesUpheld       int64
	CommitsSlashed       int64
	VotersSlashed        int64

	// SlashedPrincipal is supporter principal consumed by rejected
	// resolutions.
	SlashedPrincipal *big.Int
	// BountiesPaid is the cumulative slash bounty paid out.
	BountiesPaid *big.Int
}

func (m *Metrics) init() {
	if m.SlashedPrincipal == nil {
		m.SlashedPrincipal = new(big.Int)
	}
	if m.BountiesPaid == nil {
		m.BountiesPaid = new(big.Int)
	}
}

func (m *Metrics) addSlashedPrincipal(v *big.Int) {
	m.init()
	m.SlashedPrincipal.Add(m.SlashedPrincipal, v)
}

func (m *Metrics) addBounty(v *big.Int) {
	m.init()
	m.BountiesPaid.Add(m.BountiesPaid, v)
}

func (m *Metrics) snapshot() Metrics {
	m.init()
	out := *m
	out.SlashedPrincipal = new(big.Int).Set(m.SlashedPrincipal)
	out.BountiesPaid = new(big.Int).Set(m.BountiesPaid)
	return out
}
