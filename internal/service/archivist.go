package service

import (
	"context"
	"log/slog"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// ArchivistEngine is the slice of the engine the archivist needs.
type ArchivistEngine interface {
	Resolution(marketID string) (domain.Resolution, error)
}

// Archivist is an event sink that snapshots terminal resolutions into the
// archive. Failures are logged and dropped; the engine's state stays
// authoritative for claims either way.
type Archivist struct {
	engine  ArchivistEngine
	archive domain.ResolutionArchive
	logger  *slog.Logger
}

// NewArchivist creates an Archivist.
func NewArchivist(engine ArchivistEngine, archive domain.ResolutionArchive, logger *slog.Logger) *Archivist {
	return &Archivist{
		engine:  engine,
		archive: archive,
		logger:  logger.With(slog.String("component", "archivist")),
	}
}

// Emit saves the resolution snapshot when it reaches a terminal event.
func (a *Archivist) Emit(ctx context.Context, ev domain.Event) {
	if ev.Kind != domain.EventFinalized && ev.Kind != domain.EventRejected {
		return
	}

	res, err := a.engine.Resolution(ev.MarketID)
	if err != nil {
		a.logger.ErrorContext(ctx, "archive snapshot fetch failed",
			slog.String("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := a.archive.Save(ctx, res); err != nil {
		a.logger.ErrorContext(ctx, "archive save failed",
			slog.String("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

var _ domain.EventSink = (*Archivist)(nil)
