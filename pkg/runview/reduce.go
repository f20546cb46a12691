package runview

import (
	"time"

	"github.com/dshills/runwatch/pkg/domain/event"
	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

// activeStatus is the status of a node that is doing work: merges wait, everything else runs.
func activeStatus(class run.NodeClass) string {
	if class == run.ClassMerge {
		return run.StatusWaiting
	}
	return run.StatusRunning
}

// ReduceNode folds one incremental message into state. Expansion flags are refreshed on every
// node first. It reports whether the message's source node was found, which is exactly
// when a redraw is due, even for tags without a dedicated transition.
func ReduceNode(state *run.Snapshot, msg event.Message, now time.Time, expanded map[types.NodeID]bool) bool {
	ProjectExpansion(state, expanded)

	n := state.FindNode(msg.SourceNode)
	if n == nil {
		return false
	}

	switch msg.Tag.Kind() {
	case event.KindNodeStart:
		n.Started = run.At(now)
		n.Status = activeStatus(n.Class)
	case event.KindNodeUpdate:
		n.Status = activeStatus(n.Class)
		if n.Type == run.TypeExec {
			n.Logs = append(n.Logs, msg.Opts.Update)
		}
	case event.KindDataRequired:
		n.Enabled = true
		n.Status = run.StatusWaiting
	case event.KindCompleted:
		n.Stopped = run.At(now)
		n.Status = run.StatusFinished
		n.Result = run.ResultSuccess
		n.Enabled = false
		if n.Type == run.TypeData && msg.Opts.FormFields != nil {
			n.Fields = msg.Opts.FormFields
		}
	}

	if n.Started.IsSet() {
		n.StartedAgo = StartedAgo(n.Started, now)
		n.Took = Took(n.Started, n.Stopped)
	}
	return true
}
