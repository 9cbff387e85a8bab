package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// ClaimEngine is the slice of the engine the claims handler needs.
type ClaimEngine interface {
	ClaimResolutionReward(ctx context.Context, marketID string, caller common.Address) (*big.Int, error)
	ClaimOppositionReward(ctx context.Context, marketID string, caller common.Address) (*big.Int, error)
	ClaimDisputeReward(ctx context.Context, marketID string, index int, caller common.Address) (*big.Int, error)
	ReclaimDisputeStake(ctx context.Context, marketID string, index int, caller common.Address) (*big.Int, error)
}

// ClaimHandler serves the post-settlement payout endpoints. Every claim is
// idempotent at the engine level; a repeat claim maps to a conflict.
type ClaimHandler struct {
	engine ClaimEngine
	logger *slog.Logger
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(engine ClaimEngine, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{engine: engine, logger: logger}
}

type claimRequest struct {
	Caller string `json:"caller"`
}

func (h *ClaimHandler) claim(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, caller common.Address) (*big.Int, error),
) {
	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := op(r.Context(), caller)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "claimed",
		"amount": amountString(amount),
	})
}

// Resolution pays out a supporter's share after approval.
// POST /api/resolutions/{market}/claims/resolution
func (h *ClaimHandler) Resolution(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	h.claim(w, r, func(ctx context.Context, caller common.Address) (*big.Int, error) {
		return h.engine.ClaimResolutionReward(ctx, marketID, caller)
	})
}

// Opposition pays out an opposer's share after rejection.
// POST /api/resolutions/{market}/claims/opposition
func (h *ClaimHandler) Opposition(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	h.claim(w, r, func(ctx context.Context, caller common.Address) (*big.Int, error) {
		return h.engine.ClaimOppositionReward(ctx, marketID, caller)
	})
}

// Dispute pays out a backer's share of an upheld dispute.
// POST /api/resolutions/{market}/disputes/{index}/claim
func (h *ClaimHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.claim(w, r, func(ctx context.Context, caller common.Address) (*big.Int, error) {
		return h.engine.ClaimDisputeReward(ctx, marketID, index, caller)
	})
}

// Reclaim returns a backer's principal from a losing dispute.
// POST /api/resolutions/{market}/disputes/{index}/reclaim
func (h *ClaimHandler) Reclaim(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	index, err := pathIndex(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.claim(w, r, func(ctx context.Context, caller common.Address) (*big.Int, error) {
		return h.engine.ReclaimDisputeStake(ctx, marketID, index, caller)
	})
}
