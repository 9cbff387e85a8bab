package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// ResolutionEngine is the slice of the engine the resolution handler needs.
type ResolutionEngine interface {
	CommitResolution(ctx context.Context, marketID string, caller common.Address, commitment common.Hash, bond *big.Int) error
	ProposeResolution(ctx context.Context, marketID string, caller common.Address, outcome domain.Outcome, evidenceURI string, evidenceHash common.Hash, salt [32]byte, stake *big.Int) error
	SlashUnrevealedCommit(ctx context.Context, marketID string, committer, caller common.Address) (*big.Int, error)
	FinalizeResolution(ctx context.Context, marketID string, caller common.Address) error
	Resolution(marketID string) (domain.Resolution, error)
	Disputes(marketID string) []domain.Dispute
	Challenges(marketID string) []domain.EvidenceChallenge
}

// ResolutionHandler serves the commit-reveal proposal and finalization
// endpoints.
type ResolutionHandler struct {
	engine ResolutionEngine
	logger *slog.Logger
}

// NewResolutionHandler creates a ResolutionHandler.
func NewResolutionHandler(engine ResolutionEngine, logger *slog.Logger) *ResolutionHandler {
	return &ResolutionHandler{engine: engine, logger: logger}
}

type commitRequest struct {
	Caller     string `json:"caller"`
	Commitment string `json:"commitment"`
	Bond       string `json:"bond"`
}

// Commit registers a bonded resolution commitment.
// POST /api/resolutions/{market}/commit
func (h *ResolutionHandler) Commit(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")

	var req commitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	commitment, err := parseHash(req.Commitment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bond, err := parseAmount(req.Bond)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.CommitResolution(r.Context(), marketID, caller, commitment, bond); err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "committed"})
}

type proposeRequest struct {
	Caller       string `json:"caller"`
	Outcome      uint8  `json:"outcome"`
	EvidenceURI  string `json:"evidence_uri"`
	EvidenceHash string `json:"evidence_hash"`
	Salt         string `json:"salt"`
	Stake        string `json:"stake"`
}

// Propose reveals a prior commitment and opens the resolution.
// POST /api/resolutions/{market}/propose
func (h *ResolutionHandler) Propose(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")

	var req proposeRequest
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
	salt, err := parseSalt(req.Salt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stake, err := parseAmount(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.engine.ProposeResolution(r.Context(), marketID, caller,
		domain.Outcome(req.Outcome), req.EvidenceURI, evidenceHash, salt, stake)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "proposed"})
}

type slashCommitRequest struct {
	Caller string `json:"caller"`
}

// SlashCommit burns an expired unrevealed commitment and pays the caller the
// slash bounty.
// POST /api/resolutions/{market}/commits/{committer}/slash
func (h *ResolutionHandler) SlashCommit(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	committer, err := parseAddress(pathParam(r, "committer"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req slashCommitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bounty, err := h.engine.SlashUnrevealedCommit(r.Context(), marketID, committer, caller)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "slashed",
		"bounty": amountString(bounty),
	})
}

type finalizeRequest struct {
	Caller string `json:"caller"`
}

// Finalize settles the resolution after its dispute window and buffer have
// passed.
// POST /api/resolutions/{market}/finalize
func (h *ResolutionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")

	var req finalizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.FinalizeResolution(r.Context(), marketID, caller); err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "finalized"})
}

// resolutionView is the full settlement state of one market.
type resolutionView struct {
	Resolution domain.Resolution          `json:"resolution"`
	Disputes   []domain.Dispute           `json:"disputes"`
	Challenges []domain.EvidenceChallenge `json:"challenges"`
}

// Get returns the resolution with its disputes and evidence challenges.
// GET /api/resolutions/{market}
func (h *ResolutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")

	res, err := h.engine.Resolution(marketID)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resolutionView{
		Resolution: res,
		Disputes:   h.engine.Disputes(marketID),
		Challenges: h.engine.Challenges(marketID),
	})
}
