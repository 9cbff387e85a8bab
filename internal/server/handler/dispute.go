package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// DisputeEngine is the slice of the engine the dispute handler needs.
type DisputeEngine interface {
	RequiredDisputeBond(marketID string) (*big.Int, error)
	DisputeResolution(ctx context.Context, marketID string, caller common.Address, alternative domain.Outcome, evidenceURI string, evidenceHash common.Hash, bond *big.Int) (int, error)
	SupportDispute(ctx context.Context, marketID string, index int, caller common.Address, amount *big.Int) error
	EndorseDispute(ctx context.Context, marketID string, index int, delegate common.Address) error
	Disputes(marketID string) []domain.Dispute
}

// DisputeHandler serves the dispute filing and backing endpoints.
type DisputeHandler struct {
	engine DisputeEngine
	logger *slog.Logger
}

// NewDisputeHandler creates a DisputeHandler.
func NewDisputeHandler(engine DisputeEngine, logger *slog.Logger) *DisputeHandler {
	return &DisputeHandler{engine: engine, logger: logger}
}

// Bond returns the bond a dispute filed now would require. The bond scales
// with how late in the window the dispute lands.
// GET /api/resolutions/{market}/disputes/bond
func (h *DisputeHandler) Bond(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")

	bond, err := h.engine.RequiredDisputeBond(marketID)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"bond": amountString(bond)})
}

type fileDisputeRequest struct {
	Caller       string `json:"caller"`
	Alternative  uint8  `json:"alternative"`
	EvidenceURI  string `json:"evidence_uri"`
	EvidenceHash string `json:"evidence_hash"`
	Bond         string `json:"bond"`
}

// File opens a dispute proposing an alternative outcome.
// POST /api/resolutions/{market}/disputes
func (h *DisputeHandler) File(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")

	var req fileDisputeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	evidenceHash, err := parseHash(req.EvidenceHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bond, err := parseAmount(req.Bond)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	index, err := h.engine.DisputeResolution(r.Context(), marketID, caller,
		domain.Outcome(req.Alternative), req.EvidenceURI, evidenceHash, bond)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "disputed",
		"index":  index,
	})
}

type supportDisputeRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

// Support adds stake behind an open dispute.
// POST /api/resolutions/{market}/disputes/{index}/support
func (h *DisputeHandler) Support(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req supportDisputeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.SupportDispute(r.Context(), marketID, index, caller, amount); err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "supported"})
}

type endorseRequest struct {
	Delegate string `json:"delegate"`
}

// Endorse records a delegate endorsement of a dispute.
// POST /api/resolutions/{market}/disputes/{index}/endorse
func (h *DisputeHandler) Endorse(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req endorseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	delegate, err := parseAddress(req.Delegate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.EndorseDispute(r.Context(), marketID, index, delegate); err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "endorsed"})
}

// List returns all disputes filed against the market's resolution.
// GET /api/resolutions/{market}/disputes
func (h *DisputeHandler) List(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	writeJSON(w, http.StatusOK, map[string]any{
		"disputes": h.engine.Disputes(marketID),
	})
}
