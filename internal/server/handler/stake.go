package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// StakeEngine is the slice of the engine the staking handler needs.
type StakeEngine interface {
	SupportResolution(ctx context.Context, marketID string, caller common.Address, amount *big.Int) error
	OpposeResolution(ctx context.Context, marketID string, caller common.Address, amount *big.Int) error
	StakeOf(marketID string, addr common.Address, role domain.StakeRole) (domain.Stake, error)
}

// StakeHandler serves the support and opposition staking endpoints.
type StakeHandler struct {
	engine StakeEngine
	logger *slog.Logger
}

// NewStakeHandler creates a StakeHandler.
func NewStakeHandler(engine StakeEngine, logger *slog.Logger) *StakeHandler {
	return &StakeHandler{engine: engine, logger: logger}
}

type stakeRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (h *StakeHandler) stake(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, marketID string, caller common.Address, amount *big.Int) error,
	status string,
) {
	marketID := pathParam(r, "market")

	var req stakeRequest
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

	if err := op(r.Context(), marketID, caller, amount); err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": status})
}

// Support stakes behind the proposed outcome.
// POST /api/resolutions/{market}/support
func (h *StakeHandler) Support(w http.ResponseWriter, r *http.Request) {
	h.stake(w, r, h.engine.SupportResolution, "supported")
}

// Oppose stakes against the proposed outcome.
// POST /api/resolutions/{market}/oppose
func (h *StakeHandler) Oppose(w http.ResponseWriter, r *http.Request) {
	h.stake(w, r, h.engine.OpposeResolution, "opposed")
}

// Get returns a participant's stake on one side of the resolution.
// GET /api/resolutions/{market}/stakes/{addr}?role=support|opposition
func (h *StakeHandler) Get(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	addr, err := parseAddress(pathParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	role := domain.StakeRole(r.URL.Query().Get("role"))
	if role == "" {
		role = domain.RoleSupport
	}
	if role != domain.RoleSupport && role != domain.RoleOpposition {
		writeError(w, http.StatusBadRequest, "role must be support or opposition")
		return
	}

	stake, err := h.engine.StakeOf(marketID, addr, role)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stake)
}
