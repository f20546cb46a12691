// Package stream turns raw frames from the flow server into run view events.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/dshills/runwatch/pkg/domain/event"
	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

var (
	// ErrInvalidFrame is returned for frames that are not JSON objects.
	ErrInvalidFrame = errors.New("frame is not a JSON object")
	// ErrUnknownEnvelope is returned when the envelope kind is not recognised.
	ErrUnknownEnvelope = errors.New("unknown envelope kind")
	// ErrMissingPayload is returned for a rest envelope without a run payload.
	ErrMissingPayload = errors.New("rest envelope has no payload")
	// ErrMissingTag is returned for a message without a tag.
	ErrMissingTag = errors.New("message has no tag")
)

// Decode parses one frame. Accepted shapes:
//
//	{"Type":"rest","Value":{"Response":{"Payload":{...run...}}}}
//	{"Type":"ws","Msg":{...message...}}
//	{...message...}
//
// Identifier fields may arrive as JSON numbers or strings.
func Decode(frame []byte) (event.Event, error) {
	if !gjson.ValidBytes(frame) {
		return nil, ErrInvalidFrame
	}
	root := gjson.ParseBytes(frame)
	if !root.IsObject() {
		return nil, ErrInvalidFrame
	}

	var msg gjson.Result
	switch kind := root.Get("Type").String(); kind {
	case event.KindREST:
		ev, err := decodeSnapshot(root.Get("Value.Response.Payload"))
		if err != nil {
			return nil, err
		}
		return ev, nil
	case event.KindWS:
		msg = root.Get("Msg")
		if !msg.IsObject() {
			return nil, fmt.Errorf("%w: ws envelope without Msg", ErrInvalidFrame)
		}
	case "":
		if !root.Get("Tag").Exists() {
			return nil, fmt.Errorf("%w: no Type and no Tag", ErrUnknownEnvelope)
		}
		msg = root
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvelope, kind)
	}

	ev, err := decodeMessage(msg)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// UnwrapSnapshot returns the run payload carried by body. The full rest
// envelope, a {"Payload":...} wrapper and the bare payload are all accepted,
// tried in that order.
func UnwrapSnapshot(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidFrame
	}
	res := gjson.ParseBytes(body)
	if p := res.Get("Value.Response.Payload"); p.Exists() {
		res = p
	} else if p := res.Get("Payload"); p.IsObject() {
		res = p
	}
	if !res.IsObject() {
		return nil, ErrMissingPayload
	}
	return []byte(res.Raw), nil
}

// DecodeSnapshot parses a run payload as returned by the REST endpoint.
func DecodeSnapshot(body []byte) (*run.Snapshot, error) {
	payload, err := UnwrapSnapshot(body)
	if err != nil {
		return nil, err
	}
	ev, err := decodeSnapshot(gjson.ParseBytes(payload))
	if err != nil {
		return nil, err
	}
	return ev.Payload, nil
}

func decodeSnapshot(payload gjson.Result) (event.SnapshotEvent, error) {
	if !payload.IsObject() {
		return event.SnapshotEvent{}, ErrMissingPayload
	}
	var snap run.Snapshot
	if err := json.Unmarshal([]byte(payload.Raw), &snap); err != nil {
		return event.SnapshotEvent{}, fmt.Errorf("failed to decode run payload: %w", err)
	}
	// Payloads without a composite RunID carry the run reference instead.
	if snap.RunID == "" {
		if host, seq := payload.Get("Ref.Run.HostID"), payload.Get("Ref.Run.ID"); host.Exists() && seq.Exists() {
			snap.RunID = types.NewRunID(types.HostID(host.String()), seq.String())
		}
	}
	if snap.FlowID == "" {
		if id := payload.Get("Ref.FlowRef.ID"); id.Exists() {
			snap.FlowID = types.FlowID(id.String())
		}
	}
	return event.SnapshotEvent{Payload: &snap}, nil
}

func decodeMessage(msg gjson.Result) (event.IncrementalEvent, error) {
	tag := msg.Get("Tag").String()
	if tag == "" {
		return event.IncrementalEvent{}, ErrMissingTag
	}

	m := event.Message{
		Tag:  event.Tag(tag),
		Good: msg.Get("Good").Bool(),
		RunRef: event.RunRef{
			FlowID: types.FlowID(msg.Get("RunRef.FlowRef.ID").String()),
			HostID: types.HostID(msg.Get("RunRef.Run.HostID").String()),
			Seq:    msg.Get("RunRef.Run.ID").String(),
		},
	}

	if src := msg.Get("SourceNode"); src.IsObject() {
		m.SourceNode = types.NodeID(src.Get("ID").String())
	} else {
		m.SourceNode = types.NodeID(src.String())
	}

	opts := msg.Get("Opts")
	m.Opts.Update = opts.Get("update").String()
	if fields := opts.Get("form.fields"); fields.IsArray() {
		m.Opts.FormFields = []run.Field{}
		for _, f := range fields.Array() {
			m.Opts.FormFields = append(m.Opts.FormFields, run.Field{
				ID:     f.Get("id").String(),
				Prompt: f.Get("prompt").String(),
				Type:   f.Get("type").String(),
				Value:  f.Get("value").String(),
			})
		}
	}

	return event.IncrementalEvent{Msg: m}, nil
}
