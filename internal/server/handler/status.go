package handler

import (
	"math/big"
	"net/http"

	"github.com/quorumlabs/adjudicator/internal/ledger"
	"github.com/quorumlabs/adjudicator/internal/protocol"
)

// MetricsSource exposes the engine's lifetime counters.
type MetricsSource interface {
	Metrics() protocol.Metrics
	DueForFinalization() []string
}

// TreasurySource exposes the treasury's solvency accounting.
type TreasurySource interface {
	Custodied() *big.Int
	Earmarked() *big.Int
	Fees() *big.Int
	Burned() *big.Int
}

var _ TreasurySource = (*ledger.Treasury)(nil)

// StatusHandler serves the operator status and metrics endpoints.
type StatusHandler struct {
	Mode     string
	engine   MetricsSource
	treasury TreasurySource
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, engine MetricsSource, treasury TreasurySource) *StatusHandler {
	return &StatusHandler{Mode: mode, engine: engine, treasury: treasury}
}

// GetStatus reports the running mode and how many resolutions are waiting on
// finalization.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":              h.Mode,
		"due_finalizations": len(h.engine.DueForFinalization()),
	})
}

// GetMetrics reports lifetime protocol counters and treasury balances.
// GET /api/metrics
func (h *StatusHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	m := h.engine.Metrics()
	writeJSON(w, http.StatusOK, map[string]any{
		"resolutions_proposed":  m.ResolutionsProposed,
		"resolutions_finalized": m.ResolutionsFinalized,
		"resolutions_rejected":  m.ResolutionsRejected,
		"disputes_filed":        m.DisputesFiled,
		"disputes_upheld":       m.DisputesUpheld,
		"commits_slashed":       m.CommitsSlashed,
		"voters_slashed":        m.VotersSlashed,
		"slashed_principal":     amountString(m.SlashedPrincipal),
		"bounties_paid":         amountString(m.BountiesPaid),
		"treasury": map[string]string{
			"custodied": amountString(h.treasury.Custodied()),
			"earmarked": amountString(h.treasury.Earmarked()),
			"fees":      amountString(h.treasury.Fees()),
			"burned":    amountString(h.treasury.Burned()),
		},
	})
}
