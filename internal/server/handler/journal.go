package handler

import (
	"log/slog"
	"net/http"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// JournalHandler serves the audit surfaces: the event journal and the
// archive of finalized resolutions.
type JournalHandler struct {
	journal domain.Journal
	archive domain.ResolutionArchive
	logger  *slog.Logger
}

// NewJournalHandler creates a JournalHandler.
func NewJournalHandler(journal domain.Journal, archive domain.ResolutionArchive, logger *slog.Logger) *JournalHandler {
	return &JournalHandler{journal: journal, archive: archive, logger: logger}
}

// List returns journal entries across all markets.
// GET /api/journal?limit=50&offset=0
func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	entries, err := h.journal.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list journal failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list journal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// ListByMarket returns the journal for one market.
// GET /api/journal/{market}
func (h *JournalHandler) ListByMarket(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "market")
	opts := parseListOpts(r)

	entries, err := h.journal.ListByMarket(r.Context(), marketID, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list market journal failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list journal")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": marketID,
		"entries":   entries,
		"limit":     opts.Limit,
		"offset":    opts.Offset,
	})
}

// ListFinalized returns archived terminal resolutions.
// GET /api/archive/resolutions
func (h *JournalHandler) ListFinalized(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	resolutions, err := h.archive.ListFinalized(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archive failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resolutions": resolutions,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}
