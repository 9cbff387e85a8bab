package domain

import (
	"context"
	"time"
)

// EventKind names every observable protocol event. External-collaborator
// failures surface as events rather than errors (the enclosing operation
// proceeds).
type EventKind string

const (
	EventCommitted          EventKind = "resolution.committed"
	EventProposed           EventKind = "resolution.proposed"
	EventCommitSlashed      EventKind = "resolution.commit_slashed"
	EventSupported          EventKind = "resolution.supported"
	EventOpposed            EventKind = "resolution.opposed"
	EventAutoApproved       EventKind = "resolution.auto_approved"
	EventEvidenceChallenged EventKind = "evidence.challenged"
	EventChallengeResolved  EventKind = "evidence.challenge_resolved"
	EventVoteCommitted      EventKind = "vote.committed"
	EventVoteRevealed       EventKind = "vote.revealed"
	EventVoterSlashed       EventKind = "vote.non_reveal_slashed"
	EventOverride           EventKind = "vote.supermajority_override"
	EventDisputed           EventKind = "dispute.filed"
	EventDisputeSupported   EventKind = "dispute.supported"
	EventDisputeEndorsed    EventKind = "dispute.endorsed"
	EventFinalized          EventKind = "resolution.finalized"
	EventRejected           EventKind = "resolution.rejected"
	EventClaimed            EventKind = "reward.claimed"
	EventExternalCallFailed EventKind = "external.call_failed"
)

// Event is one protocol occurrence, published to the signal bus and appended
// to the journal.
type Event struct {
	ID       string
	Kind     EventKind
	MarketID string
	At       time.Time
	Detail   map[string]any
}

// SignalBus fans protocol events out to live subscribers (the WebSocket hub,
// notifiers). Publishing is best-effort from the engine's point of view.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// EventSink receives every engine event. Implementations must not block the
// engine; failures are the sink's problem to log.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}
