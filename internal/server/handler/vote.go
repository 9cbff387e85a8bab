package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// VoteEngine is the slice of the engine the voting handler needs.
type VoteEngine interface {
	CommitVote(ctx context.Context, marketID string, delegate common.Address, commitment common.Hash) error
	RevealVote(ctx context.Context, marketID string, delegate common.Address, support bool, salt [32]byte) error
	SlashNonRevealingLegislator(ctx context.Context, marketID string, delegate, caller common.Address) error
}

// VoteHandler serves the delegate commit-reveal voting endpoints.
type VoteHandler struct {
	engine VoteEngine
	logger *slog.Logger
}

// NewVoteHandler creates a VoteHandler.
func NewVoteHandler(engine VoteEngine, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{engine: engine, logger: logger}
}

type voteCommitRequest struct {
	Delegate   string `json:"delegate"`
	Commitment string `json:"commitment"`
}

// Commit registers a delegate's vote commitment.
// POST /api/resolutions/{market}/votes/commit
func (h *VoteHandler) Commit(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")

	var req voteCommitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	delegate, err := parseAddress(req.Delegate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	commitment, err := parseHash(req.Commitment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.CommitVote(r.Context(), marketID, delegate, commitment); err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "committed"})
}

type voteRevealRequest struct {
	Delegate string `json:"delegate"`
	Support  bool   `json:"support"`
	Salt     string `json:"salt"`
}

// Reveal opens a committed vote and tallies it.
// POST /api/resolutions/{market}/votes/reveal
func (h *VoteHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")

	var req voteRevealRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	delegate, err := parseAddress(req.Delegate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	salt, err := parseSalt(req.Salt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.RevealVote(r.Context(), marketID, delegate, req.Support, salt); err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revealed"})
}

type voteSlashRequest struct {
	Caller string `json:"caller"`
}

// Slash penalizes a delegate who committed but never revealed.
// POST /api/resolutions/{market}/votes/{delegate}/slash
func (h *VoteHandler) Slash(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	delegate, err := parseAddress(pathParam(r, "delegate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req voteSlashRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.SlashNonRevealingLegislator(r.Context(), marketID, delegate, caller); err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "slashed"})
}
