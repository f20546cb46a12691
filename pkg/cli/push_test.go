package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/runview"
)

func TestPushCommand(t *testing.T) {
	setupCLI(t)
	srv, url := startSampleServer(t)

	out, err := executeCommand(t, "", "push", "build", "h1-7", "approve", "--field", "ok=true", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Data submitted to node 'approve'")

	subs := srv.Submissions()
	require.Len(t, subs, 1)
	var sub runview.Submission
	require.NoError(t, json.Unmarshal(subs[0], &sub))
	assert.Equal(t, runview.FlowRef{ID: "build", Ver: runview.SubmissionVersion}, sub.Ref)
	assert.Equal(t, "h1-7", string(sub.Run))
	assert.Equal(t, "approve", string(sub.Form.ID))
	assert.Equal(t, map[string]string{"ok": "true"}, sub.Form.Values)
}

func TestPushCommandRejected(t *testing.T) {
	setupCLI(t)

	tests := []struct {
		name        string
		args        []string
		errContains string
	}{
		{name: "exec node", args: []string{"push", "build", "h1-7", "checkout"}, errContains: "not a data node"},
		{name: "unknown node", args: []string{"push", "build", "h1-7", "deploy"}, errContains: "not found"},
		{name: "unknown field", args: []string{"push", "build", "h1-7", "approve", "--field", "nope=1"}, errContains: `no field "nope"`},
		{name: "malformed field", args: []string{"push", "build", "h1-7", "approve", "--field", "ok"}, errContains: "expected id=value"},
		{name: "bad node id", args: []string{"push", "build", "h1-7", "a/b"}, errContains: "node ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, url := startSampleServer(t)
			_, err := executeCommand(t, "", append(tt.args, "--server", url)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
			assert.Empty(t, srv.Submissions())
		})
	}
}

func TestParseFieldValues(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "none", pairs: nil, want: map[string]string{}},
		{name: "simple", pairs: []string{"a=1", "b=two"}, want: map[string]string{"a": "1", "b": "two"}},
		{name: "value with equals", pairs: []string{"expr=x=y"}, want: map[string]string{"expr": "x=y"}},
		{name: "empty value", pairs: []string{"a="}, want: map[string]string{"a": ""}},
		{name: "no separator", pairs: []string{"a"}, wantErr: true},
		{name: "empty id", pairs: []string{"=1"}, wantErr: true},
		{name: "duplicate", pairs: []string{"a=1", "a=2"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFieldValues(tt.pairs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckFieldNames(t *testing.T) {
	n := &run.Node{ID: "approve", Fields: []run.Field{{ID: "ok"}, {ID: "note"}}}

	assert.NoError(t, checkFieldNames(n, map[string]string{"ok": "1"}))
	assert.NoError(t, checkFieldNames(&run.Node{ID: "free"}, map[string]string{"any": "1"}))
	assert.NoError(t, checkFieldNames(nil, map[string]string{"any": "1"}))

	err := checkFieldNames(n, map[string]string{"bad": "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fields: note, ok")
}
