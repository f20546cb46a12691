// Package run defines the in-memory model of a single displayed workflow run.
package run

import (
	"github.com/dshills/runwatch/pkg/domain/types"
)

// NodeType is the kind of work a node performs.
type NodeType string

const (
	// TypeData is a human/form input gate.
	TypeData NodeType = "data"
	// TypeExec is a task that produces log output.
	TypeExec NodeType = "exec"
	// TypeMerge is a join point.
	TypeMerge NodeType = "merge"
)

// NodeClass is the structural class of a node in the flow.
type NodeClass string

const (
	// ClassTask is an ordinary task node.
	ClassTask NodeClass = "task"
	// ClassMerge is a merge node waiting on predecessors.
	ClassMerge NodeClass = "merge"
)

// Node status values written by the reducer.
const (
	StatusRunning  = "running"
	StatusWaiting  = "waiting"
	StatusFinished = "finished"
)

// ResultSuccess is the only result the reducer records on completion.
// Completion tags carry no outcome yet, so a failed task is still recorded as a success.
const ResultSuccess = "success"

// Run summary statuses set when the run ends.
const (
	SummaryGood = "good"
	SummaryBad  = "bad"
)

// Field is one field of a data-entry form.
type Field struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt,omitempty"`
	Type   string `json:"type,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Node is a unit in the run's task graph.
type Node struct {
	ID      types.NodeID `json:"ID"`
	Name    string       `json:"Name"`
	Type    NodeType     `json:"Type"`
	Class   NodeClass    `json:"Class"`
	Status  string       `json:"Status"`
	Enabled bool         `json:"Enabled"`
	Started Timestamp    `json:"Started"`
	Stopped Timestamp    `json:"Stopped"`
	// StartedAgo and Took are derived display fields.
	StartedAgo string         `json:"StartedAgo"`
	Took       string         `json:"Took"`
	Logs       []string       `json:"Logs,omitempty"`
	Fields     []Field        `json:"Fields,omitempty"`
	Waits      map[string]any `json:"Waits,omitempty"`
	Result     string         `json:"Result"`
	// Expanded is projected from the expansion store on every pass and never read from the wire.
	Expanded bool `json:"Expanded,omitempty"`
}

// Level is one layer of the topologically layered graph.
type Level []Node

// Trigger is an entry-point gate outside the graph.
type Trigger struct {
	ID       types.NodeID `json:"ID"`
	Name     string       `json:"Name"`
	Type     NodeType     `json:"Type"`
	Enabled  bool         `json:"Enabled"`
	Fields   []Field      `json:"Fields,omitempty"`
	Expanded bool         `json:"Expanded,omitempty"`
}

// Summary is the run-level status block.
type Summary struct {
	Status string `json:"Status"`
	// Stat is the display label derived from Status.
	Stat       string    `json:"Stat"`
	StartTime  Timestamp `json:"StartTime"`
	StartedAgo string    `json:"StartedAgo"`
	Took       string    `json:"Took"`
	Ended      bool      `json:"Ended"`
	EndTime    Timestamp `json:"EndTime"`
}

// Snapshot is the full state of one run as fetched from the server and kept current by events.
type Snapshot struct {
	FlowID   types.FlowID `json:"FlowID"`
	FlowName string       `json:"FlowName,omitempty"`
	RunID    types.RunID  `json:"RunID"`
	Name     string       `json:"Name"`
	// Parent is the link back to the owning flow.
	Parent   string    `json:"Parent"`
	Summary  Summary   `json:"Summary"`
	Triggers []Trigger `json:"Triggers"`
	Graph    []Level   `json:"Graph"`
}

// FindNode returns a pointer to the node with the given ID, or nil.
func (s *Snapshot) FindNode(id types.NodeID) *Node {
	for i := range s.Graph {
		for j := range s.Graph[i] {
			if s.Graph[i][j].ID == id {
				return &s.Graph[i][j]
			}
		}
	}
	return nil
}

// EachNode calls fn for every node in display order. fn may mutate the node.
func (s *Snapshot) EachNode(fn func(n *Node)) {
	for i := range s.Graph {
		for j := range s.Graph[i] {
			fn(&s.Graph[i][j])
		}
	}
}

// NodeCount returns the number of nodes across all levels.
func (s *Snapshot) NodeCount() int {
	count := 0
	for _, level := range s.Graph {
		count += len(level)
	}
	return count
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.Triggers != nil {
		c.Triggers = make([]Trigger, len(s.Triggers))
		for i, tr := range s.Triggers {
			tr.Fields = cloneFields(tr.Fields)
			c.Triggers[i] = tr
		}
	}
	if s.Graph != nil {
		c.Graph = make([]Level, len(s.Graph))
		for i, level := range s.Graph {
			if level == nil {
				continue
			}
			nl := make(Level, len(level))
			for j, n := range level {
				n.Fields = cloneFields(n.Fields)
				if n.Logs != nil {
					logs := make([]string, len(n.Logs))
					copy(logs, n.Logs)
					n.Logs = logs
				}
				if n.Waits != nil {
					waits := make(map[string]any, len(n.Waits))
					for k, v := range n.Waits {
						waits[k] = v
					}
					n.Waits = waits
				}
				nl[j] = n
			}
			c.Graph[i] = nl
		}
	}
	return &c
}

func cloneFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}
