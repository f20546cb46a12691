// Package event models the envelopes delivered to a run view: one-off snapshot deliveries
// and incremental progress messages.
package event

import (
	"strings"

	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

// Envelope kinds as they appear in the "Type" discriminator on the wire.
const (
	KindREST = "rest"
	KindWS   = "ws"
)

// Event is either a SnapshotEvent or an IncrementalEvent.
type Event interface {
	isEvent()
}

// SnapshotEvent delivers a freshly fetched run payload.
type SnapshotEvent struct {
	Payload *run.Snapshot
}

// IncrementalEvent delivers one progress message for some run.
type IncrementalEvent struct {
	Msg Message
}

func (SnapshotEvent) isEvent()    {}
func (IncrementalEvent) isEvent() {}

// RunRef addresses a run on a host within a flow.
type RunRef struct {
	FlowID types.FlowID
	HostID types.HostID
	Seq    string
}

// RunID returns the composite run identifier.
func (r RunRef) RunID() types.RunID {
	return types.NewRunID(r.HostID, r.Seq)
}

// Opts carries the tag-specific payload of a message.
type Opts struct {
	// Update is the output line for sys.node.update.
	Update string
	// FormFields holds the submitted fields of a completed data node.
	FormFields []run.Field
}

// Message is one incremental progress event.
type Message struct {
	Tag        Tag
	SourceNode types.NodeID
	RunRef     RunRef
	Opts       Opts
	Good       bool
}

// Tag is the discriminator selecting which transition applies.
type Tag string

// System tags emitted by the server.
const (
	TagEndAll       Tag = "sys.end.all"
	TagNodeStart    Tag = "sys.node.start"
	TagNodeUpdate   Tag = "sys.node.update"
	TagDataRequired Tag = "sys.data.required"
)

// TagKind classifies a tag into the transitions the reducer knows about.
type TagKind int

const (
	// KindUnknown is any tag without a dedicated transition. A matched node still redraws.
	KindUnknown TagKind = iota
	KindEndAll
	KindNodeStart
	KindNodeUpdate
	KindDataRequired
	// KindCompleted covers every tag beginning with "task" or "merge".
	KindCompleted
)

// Kind classifies the tag.
func (t Tag) Kind() TagKind {
	switch t {
	case TagEndAll:
		return KindEndAll
	case TagNodeStart:
		return KindNodeStart
	case TagNodeUpdate:
		return KindNodeUpdate
	case TagDataRequired:
		return KindDataRequired
	}
	s := string(t)
	if strings.HasPrefix(s, "task") || strings.HasPrefix(s, "merge") {
		return KindCompleted
	}
	return KindUnknown
}

func (k TagKind) String() string {
	switch k {
	case KindEndAll:
		return "end-all"
	case KindNodeStart:
		return "node-start"
	case KindNodeUpdate:
		return "node-update"
	case KindDataRequired:
		return "data-required"
	case KindCompleted:
		return "completed"
	default:
		return "unknown"
	}
}
