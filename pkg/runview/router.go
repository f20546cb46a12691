package runview

import (
	"github.com/dshills/runwatch/pkg/domain/event"
	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

// Target identifies the run currently on display.
type Target struct {
	FlowID types.FlowID
	RunID  types.RunID
}

// Matches reports whether ref addresses the displayed run.
func (t Target) Matches(ref event.RunRef) bool {
	return ref.FlowID == t.FlowID && ref.RunID() == t.RunID
}

// Outcome describes what Route did with an event.
type Outcome int

const (
	// OutcomeReplaced means a snapshot delivery replaced the state.
	OutcomeReplaced Outcome = iota
	// OutcomeEnded means the run-finished signal was applied.
	OutcomeEnded
	// OutcomeReduced means a node transition was applied.
	OutcomeReduced
	// OutcomeNoSnapshot means an incremental event arrived before any snapshot and was dropped.
	OutcomeNoSnapshot
	// OutcomeForeign means the event addressed another flow or run and was dropped.
	OutcomeForeign
	// OutcomeNoTarget means no node matched the event's source node.
	OutcomeNoTarget
	// OutcomeIgnored means the event was nil or of an unrecognised kind.
	OutcomeIgnored
)

// Redraw reports whether the outcome changed what should be displayed.
func (o Outcome) Redraw() bool {
	return o == OutcomeReplaced || o == OutcomeEnded || o == OutcomeReduced
}

func (o Outcome) String() string {
	switch o {
	case OutcomeReplaced:
		return "replaced"
	case OutcomeEnded:
		return "ended"
	case OutcomeReduced:
		return "reduced"
	case OutcomeNoSnapshot:
		return "no-snapshot"
	case OutcomeForeign:
		return "foreign"
	case OutcomeNoTarget:
		return "no-target"
	default:
		return "ignored"
	}
}

// Route folds ev into state for the displayed target. It returns the state to display
// and the outcome; the returned state is nil whenever the outcome does not call for a redraw.
// Incremental events mutate state in place; snapshot deliveries replace it.
func Route(state *run.Snapshot, ev event.Event, target Target, d Deps) (*run.Snapshot, Outcome) {
	switch e := ev.(type) {
	case event.SnapshotEvent:
		if e.Payload == nil {
			return nil, OutcomeIgnored
		}
		now := d.now()
		return Augment(e.Payload, target.FlowID, now, d.expansion(target.RunID), d.embellisher()), OutcomeReplaced

	case event.IncrementalEvent:
		if state == nil {
			return nil, OutcomeNoSnapshot
		}
		if !target.Matches(e.Msg.RunRef) {
			return nil, OutcomeForeign
		}
		now := d.now()
		expanded := d.expansion(target.RunID)
		if e.Msg.Tag.Kind() == event.KindEndAll {
			EndRun(state, e.Msg.Good, now, expanded, d.embellisher())
			return state, OutcomeEnded
		}
		if !ReduceNode(state, e.Msg, now, expanded) {
			return nil, OutcomeNoTarget
		}
		return state, OutcomeReduced
	}
	return nil, OutcomeIgnored
}
