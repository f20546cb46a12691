package floeserver

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/runwatch/pkg/domain/types"
)

// MessageFrame builds a ws envelope in the server's wire shape. The run
// sequence is sent as a JSON number when it is numeric, as the server does.
func MessageFrame(flowID types.FlowID, runID types.RunID, tag string, node types.NodeID, good bool, opts map[string]any) ([]byte, error) {
	host, seq, err := types.ParseRunID(runID)
	if err != nil {
		return nil, err
	}

	var seqValue any = seq
	if n := json.Number(seq); isInt(n) {
		seqValue = n
	}

	msg := map[string]any{
		"Tag":        tag,
		"Good":       good,
		"SourceNode": map[string]any{"ID": node},
		"RunRef": map[string]any{
			"FlowRef": map[string]any{"ID": flowID, "Ver": 1},
			"Run":     map[string]any{"HostID": host, "ID": seqValue},
		},
	}
	if opts != nil {
		msg["Opts"] = opts
	}

	frame, err := json.Marshal(map[string]any{"Type": "ws", "Msg": msg})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	return frame, nil
}

func isInt(n json.Number) bool {
	_, err := n.Int64()
	return err == nil
}
