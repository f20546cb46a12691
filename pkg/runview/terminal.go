package runview

import (
	"time"

	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

// EndRun applies the run-finished signal: the summary is closed and re-embellished, and every
// data node is disabled so no further submissions are accepted.
func EndRun(state *run.Snapshot, good bool, now time.Time, expanded map[types.NodeID]bool, emb SummaryEmbellisher) {
	state.Summary.Ended = true
	state.Summary.EndTime = run.At(now)
	if good {
		state.Summary.Status = run.SummaryGood
	} else {
		state.Summary.Status = run.SummaryBad
	}
	if emb != nil {
		state.Summary = emb.Embellish(state.Summary, now)
	}

	state.EachNode(func(n *run.Node) {
		if n.Type == run.TypeData {
			n.Enabled = false
		}
	})
	ProjectExpansion(state, expanded)
}
