package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/quorumlabs/adjudicator/internal/domain"
)

// EventSink adapts a Notifier to the engine's event stream, rendering
// protocol events into operator-readable alerts. The Notifier's event filter
// decides which kinds actually go out.
type EventSink struct {
	notifier *Notifier
}

// NewEventSink creates an EventSink over the given notifier.
func NewEventSink(notifier *Notifier) *EventSink {
	return &EventSink{notifier: notifier}
}

// Emit formats and forwards one protocol event. Delivery failures are
// already logged by the notifier; the engine never waits on them.
func (s *EventSink) Emit(ctx context.Context, ev domain.Event) {
	title := eventTitle(ev.Kind)
	_ = s.notifier.Notify(ctx, string(ev.Kind), title, eventMessage(ev))
}

// eventTitle renders "dispute.filed" as "Dispute Filed".
func eventTitle(kind domain.EventKind) string {
	parts := strings.FieldsFunc(string(kind), func(r rune) bool {
		return r == '.' || r == '_'
	})
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func eventMessage(ev domain.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "market: %s", ev.MarketID)

	keys := make([]string, 0, len(ev.Detail))
	for k := range ev.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, ev.Detail[k])
	}
	return b.String()
}

var _ domain.EventSink = (*EventSink)(nil)
