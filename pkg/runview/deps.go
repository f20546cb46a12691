package runview

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dshills/runwatch/pkg/domain/types"
)

// ExpansionLookup returns the expand/collapse flags persisted for a run.
// Implementations must not fail; an unreadable store yields an empty mapping.
type ExpansionLookup interface {
	States(runID types.RunID) map[types.NodeID]bool
}

// ExpansionFunc adapts a function to ExpansionLookup.
type ExpansionFunc func(runID types.RunID) map[types.NodeID]bool

// States implements ExpansionLookup.
func (f ExpansionFunc) States(runID types.RunID) map[types.NodeID]bool {
	return f(runID)
}

// Deps are the external collaborators consulted while folding events.
// Zero fields fall back to the wall clock, no expansion state and DefaultEmbellisher.
type Deps struct {
	Clock       clock.Clock
	Expansion   ExpansionLookup
	Embellisher SummaryEmbellisher
}

func (d Deps) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock.Now()
}

func (d Deps) expansion(runID types.RunID) map[types.NodeID]bool {
	if d.Expansion == nil {
		return nil
	}
	return d.Expansion.States(runID)
}

func (d Deps) embellisher() SummaryEmbellisher {
	if d.Embellisher == nil {
		return DefaultEmbellisher
	}
	return d.Embellisher
}
