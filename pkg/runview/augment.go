package runview

import (
	"time"

	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

// ParentLink returns the link from a run back to its flow.
func ParentLink(flowID types.FlowID) string {
	return "/flows/" + string(flowID)
}

// Augment fills the derived display fields of a freshly fetched payload in place and returns it.
// flowID is the displayed flow, expanded the current expansion store contents for the run.
func Augment(payload *run.Snapshot, flowID types.FlowID, now time.Time, expanded map[types.NodeID]bool, emb SummaryEmbellisher) *run.Snapshot {
	if payload == nil {
		return nil
	}
	payload.Parent = ParentLink(flowID)
	if emb != nil {
		payload.Summary = emb.Embellish(payload.Summary, now)
	}
	payload.EachNode(func(n *run.Node) {
		n.StartedAgo = StartedAgo(n.Started, now)
		n.Took = Took(n.Started, n.Stopped)
	})
	ProjectExpansion(payload, expanded)
	return payload
}

// ProjectExpansion copies the externally persisted expand flags onto every trigger and node.
// Nodes absent from the mapping are collapsed.
func ProjectExpansion(s *run.Snapshot, expanded map[types.NodeID]bool) {
	for i := range s.Triggers {
		s.Triggers[i].Expanded = expanded[s.Triggers[i].ID]
	}
	s.EachNode(func(n *run.Node) {
		n.Expanded = expanded[n.ID]
	})
}
