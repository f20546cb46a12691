package runview

import (
	"errors"
	"fmt"

	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

// SubmissionVersion is the flow version sent with every data push.
const SubmissionVersion = 1

var (
	// ErrNodeNotFound is returned when the form targets a node that is not in the run.
	ErrNodeNotFound = errors.New("node not found in run")
	// ErrNotDataNode is returned when the form targets a node that does not accept data.
	ErrNotDataNode = errors.New("node is not a data node")
	// ErrSubmissionClosed is returned when the data node is not currently accepting input.
	ErrSubmissionClosed = errors.New("data node is not accepting input")
)

// FlowRef is the versioned flow reference carried by a data push.
type FlowRef struct {
	ID  types.FlowID `json:"ID"`
	Ver int          `json:"Ver"`
}

// Form is the set of values entered into one data node's form.
type Form struct {
	ID     types.NodeID      `json:"ID"`
	Values map[string]string `json:"Values"`
}

// Submission is the body of POST /push/data.
type Submission struct {
	Ref  FlowRef     `json:"Ref"`
	Run  types.RunID `json:"Run"`
	Form Form        `json:"Form"`
}

// NewSubmission packages form values for the displayed run.
func NewSubmission(target Target, nodeID types.NodeID, values map[string]string) Submission {
	if values == nil {
		values = map[string]string{}
	}
	return Submission{
		Ref:  FlowRef{ID: target.FlowID, Ver: SubmissionVersion},
		Run:  target.RunID,
		Form: Form{ID: nodeID, Values: values},
	}
}

// PrepareSubmission checks that nodeID is an enabled data node in state and packages the values.
// Once the run has ended every data node is disabled, so late submissions are refused here too.
func PrepareSubmission(state *run.Snapshot, target Target, nodeID types.NodeID, values map[string]string) (Submission, error) {
	if state == nil {
		return Submission{}, fmt.Errorf("%w: no run loaded", ErrNodeNotFound)
	}
	n := state.FindNode(nodeID)
	if n == nil {
		return Submission{}, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if n.Type != run.TypeData {
		return Submission{}, fmt.Errorf("%w: %s has type %q", ErrNotDataNode, nodeID, n.Type)
	}
	if !n.Enabled {
		return Submission{}, fmt.Errorf("%w: %s", ErrSubmissionClosed, nodeID)
	}
	return NewSubmission(target, nodeID, values), nil
}
