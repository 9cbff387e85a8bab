package app

import (
	"context"
	"log/slog"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// journalSink adapts the durable journal to domain.EventSink. Append
// failures are logged and dropped; the journal never blocks an engine
// operation.
type journalSink struct {
	journal domain.Journal
	logger  *slog.Logger
}

func newJournalSink(journal domain.Journal, logger *slog.Logger) *journalSink {
	return &journalSink{
		journal: journal,
		logger:  logger.With(slog.String("component", "journal_sink")),
	}
}

// Emit implements domain.EventSink.
func (s *journalSink) Emit(ctx context.Context, ev domain.Event) {
	if err := s.journal.Append(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "journal append",
			slog.String("kind", string(ev.Kind)),
			slog.String("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// multiSink fans each engine event out to every registered sink in order.
// Sinks may be added after the engine is constructed, which lets sinks that
// read back from the engine (the archivist) hook in without a cycle.
type multiSink struct {
	sinks []domain.EventSink
}

// Add registers another sink. Not safe to call once the engine is serving.
func (m *multiSink) Add(s domain.EventSink) {
	m.sinks = append(m.sinks, s)
}

// Emit implements domain.EventSink.
func (m *multiSink) Emit(ctx context.Context, ev domain.Event) {
	for _, s := range m.sinks {
		s.Emit(ctx, ev)
	}
}

var (
	_ domain.EventSink = (*journalSink)(nil)
	_ domain.EventSink = (*multiSink)(nil)
)
