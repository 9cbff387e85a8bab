package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// EvidenceArchiveHandler serves the content-addressed evidence document
// store. Documents are uploaded before the proposal that references them and
// fetched by anyone auditing a resolution.
type EvidenceArchiveHandler struct {
	archiver domain.EvidenceArchiver
	logger   *slog.Logger
}

// NewEvidenceArchiveHandler creates an EvidenceArchiveHandler.
func NewEvidenceArchiveHandler(archiver domain.EvidenceArchiver, logger *slog.Logger) *EvidenceArchiveHandler {
	return &EvidenceArchiveHandler{archiver: archiver, logger: logger}
}

// Upload stores an evidence document under its declared keccak256 hash. The
// store rejects bodies whose digest does not match the path hash.
// PUT /api/evidence/{hash}
func (h *EvidenceArchiveHandler) Upload(w http.ResponseWriter, r *http.Request) {
	hash, err := parseHash(pathParam(r, "hash"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.archiver.Archive(r.Context(), hash, r.Body, contentType); err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "archived",
		"hash":   hash.Hex(),
	})
}

// Fetch streams an archived evidence document.
// GET /api/evidence/{hash}
func (h *EvidenceArchiveHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	hash, err := parseHash(pathParam(r, "hash"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.archiver.Fetch(r.Context(), hash)
	if err != nil {
		writeEngineError(w, r, h.logger, err)
		return
	}
	defer doc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, doc); err != nil {
		h.logger.WarnContext(r.Context(), "stream evidence",
			slog.String("hash", hash.Hex()),
			slog.String("error", err.Error()),
		)
	}
}
