package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// EvidenceEngine is the slice of the engine the evidence handler needs.
type EvidenceEngine interface {
	ChallengeEvidence(ctx context.Context, marketID string, caller common.Address, reason string, stake *big.Int) (int, error)
	ResolveEvidenceChallenge(ctx context.Context, marketID string, index int, caller common.Address, upheld bool) error
}

// EvidenceHandler serves the evidence challenge endpoints.
type EvidenceHandler struct {
	engine EvidenceEngine
	logger *slog.Logger
}

// NewEvidenceHandler creates an EvidenceHandler.
func NewEvidenceHandler(engine EvidenceEngine, logger *slog.Logger) *EvidenceHandler {
	return &EvidenceHandler{engine: engine, logger: logger}
}

type challengeRequest struct {
	Caller string `json:"caller"`
	Reason string `json:"reason"`
	Stake  string `json:"stake"`
}

// Challenge files a staked challenge against the proposal's evidence.
// POST /api/resolutions/{market}/challenges
func (h *EvidenceHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")

	var req challengeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stake, err := parseAmount(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	index, err := h.engine.ChallengeEvidence(r.Context(), marketID, caller, req.Reason, stake)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "challenged",
		"index":  index,
	})
}

type resolveChallengeRequest struct {
	Caller string `json:"caller"`
	Upheld bool   `json:"upheld"`
}

// Resolve rules on an evidence challenge. Manager only.
// POST /api/resolutions/{market}/challenges/{index}/resolve
func (h *EvidenceHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req resolveChallengeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.ResolveEvidenceChallenge(r.Context(), marketID, index, caller, req.Upheld); err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "resolved",
		"upheld": req.Upheld,
	})
}
