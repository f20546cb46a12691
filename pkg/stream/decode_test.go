package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/runwatch/pkg/domain/event"
	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

func TestDecodeRestEnvelope(t *testing.T) {
	frame := []byte(`{"Type":"rest","Value":{"Response":{"Payload":{
		"FlowID":"build","RunID":"h1-7","Name":"build #7",
		"Summary":{"StartTime":"2024-03-01T10:00:00Z","EndTime":"0001-01-01T00:00:00Z"},
		"Graph":[[{"ID":"checkout","Type":"exec","Class":"task","Started":"2024-03-01T10:00:05Z","Stopped":"0001-01-01T00:00:00Z"}]]
	}}}}`)

	ev, err := Decode(frame)
	require.NoError(t, err)
	snap, ok := ev.(event.SnapshotEvent)
	require.True(t, ok, "expected SnapshotEvent, got %T", ev)

	require.NotNil(t, snap.Payload)
	assert.Equal(t, types.FlowID("build"), snap.Payload.FlowID)
	assert.Equal(t, types.RunID("h1-7"), snap.Payload.RunID)
	n := snap.Payload.FindNode("checkout")
	require.NotNil(t, n)
	assert.True(t, n.Started.IsSet())
	assert.False(t, n.Stopped.IsSet())
	assert.False(t, snap.Payload.Summary.EndTime.IsSet())
}

func TestDecodeRestEnvelopeRunRef(t *testing.T) {
	frame := []byte(`{"Type":"rest","Value":{"Response":{"Payload":{
		"Ref":{"FlowRef":{"ID":"build","Ver":1},"Run":{"HostID":"h1","ID":7}},
		"Graph":[]
	}}}}`)

	ev, err := Decode(frame)
	require.NoError(t, err)
	snap := ev.(event.SnapshotEvent)
	assert.Equal(t, types.FlowID("build"), snap.Payload.FlowID)
	assert.Equal(t, types.RunID("h1-7"), snap.Payload.RunID)
}

func TestDecodeWSEnvelope(t *testing.T) {
	frame := []byte(`{"Type":"ws","Msg":{
		"Tag":"task.approve.good","Good":true,
		"SourceNode":{"ID":"approve"},
		"RunRef":{"FlowRef":{"ID":"build","Ver":1},"Run":{"HostID":"h1","ID":7}},
		"Opts":{"update":"line","form":{"fields":[{"id":"ok","prompt":"Ship it?","type":"bool","value":"true"}]}}
	}}`)

	ev, err := Decode(frame)
	require.NoError(t, err)
	inc, ok := ev.(event.IncrementalEvent)
	require.True(t, ok, "expected IncrementalEvent, got %T", ev)

	msg := inc.Msg
	assert.Equal(t, event.Tag("task.approve.good"), msg.Tag)
	assert.Equal(t, event.KindCompleted, msg.Tag.Kind())
	assert.True(t, msg.Good)
	assert.Equal(t, types.NodeID("approve"), msg.SourceNode)
	assert.Equal(t, event.RunRef{FlowID: "build", HostID: "h1", Seq: "7"}, msg.RunRef)
	assert.Equal(t, types.RunID("h1-7"), msg.RunRef.RunID())
	assert.Equal(t, "line", msg.Opts.Update)
	assert.Equal(t, []run.Field{{ID: "ok", Prompt: "Ship it?", Type: "bool", Value: "true"}}, msg.Opts.FormFields)
}

func TestDecodeStringIdentifiers(t *testing.T) {
	frame := []byte(`{"Type":"ws","Msg":{"Tag":"sys.node.start","SourceNode":"checkout",
		"RunRef":{"FlowRef":{"ID":"build"},"Run":{"HostID":"h1","ID":"7"}}}}`)

	ev, err := Decode(frame)
	require.NoError(t, err)
	msg := ev.(event.IncrementalEvent).Msg
	assert.Equal(t, types.NodeID("checkout"), msg.SourceNode)
	assert.Equal(t, "7", msg.RunRef.Seq)
	assert.Nil(t, msg.Opts.FormFields)
}

func TestDecodeBareMessage(t *testing.T) {
	ev, err := Decode([]byte(`{"Tag":"sys.end.all","Good":false,"RunRef":{"FlowRef":{"ID":"build"},"Run":{"HostID":"h1","ID":7}}}`))
	require.NoError(t, err)
	msg := ev.(event.IncrementalEvent).Msg
	assert.Equal(t, event.KindEndAll, msg.Tag.Kind())
	assert.False(t, msg.Good)
}

func TestDecodeEmptyFormFields(t *testing.T) {
	ev, err := Decode([]byte(`{"Type":"ws","Msg":{"Tag":"task.approve.good","SourceNode":{"ID":"approve"},"Opts":{"form":{"fields":[]}}}}`))
	require.NoError(t, err)
	fields := ev.(event.IncrementalEvent).Msg.Opts.FormFields
	assert.NotNil(t, fields)
	assert.Empty(t, fields)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `{"Type":`, ErrInvalidFrame},
		{"array", `[1,2]`, ErrInvalidFrame},
		{"unknown kind", `{"Type":"sse"}`, ErrUnknownEnvelope},
		{"no type no tag", `{"Hello":1}`, ErrUnknownEnvelope},
		{"rest without payload", `{"Type":"rest","Value":{}}`, ErrMissingPayload},
		{"ws without msg", `{"Type":"ws"}`, ErrInvalidFrame},
		{"ws without tag", `{"Type":"ws","Msg":{"Good":true}}`, ErrMissingTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.frame))
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, ev)
		})
	}
}

func TestDecodeSnapshot(t *testing.T) {
	bodies := map[string]string{
		"bare":     `{"FlowID":"build","RunID":"h1-7","Graph":[]}`,
		"payload":  `{"Payload":{"FlowID":"build","RunID":"h1-7","Graph":[]}}`,
		"envelope": `{"Type":"rest","Value":{"Response":{"Payload":{"FlowID":"build","RunID":"h1-7","Graph":[]}}}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			snap, err := DecodeSnapshot([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, types.RunID("h1-7"), snap.RunID)
		})
	}

	_, err := DecodeSnapshot([]byte(`"nope"`))
	assert.ErrorIs(t, err, ErrMissingPayload)
}

func TestUnwrapSnapshot(t *testing.T) {
	payload, err := UnwrapSnapshot([]byte(`{"Type":"rest","Value":{"Response":{"Payload":{"Graph":[]}}}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Graph":[]}`, string(payload))

	_, err = UnwrapSnapshot([]byte(`{"Payload":`))
	assert.ErrorIs(t, err, ErrInvalidFrame)

	_, err = UnwrapSnapshot([]byte(`{"Payload":"text"}`))
	assert.NoError(t, err, "a non-object Payload leaves the body as the payload")
}
