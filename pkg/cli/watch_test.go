package cli

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/runwatch/internal/testutil"
	"github.com/dshills/runwatch/internal/testutil/floeserver"
	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

func startSampleServer(t *testing.T) (*floeserver.Server, string) {
	t.Helper()
	srv, ts := testutil.StartFloeServer(t, nil)
	require.NoError(t, srv.SetRun(testutil.SampleFlow, testutil.SampleRun, testutil.SampleSnapshot(time.Now().Add(-time.Minute))))
	return srv, ts.URL
}

func TestWatchOnce(t *testing.T) {
	setupCLI(t)
	_, url := startSampleServer(t)

	out, err := executeCommand(t, "", "watch", "build", "h1-7", "--once", "--no-color", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Build / build #7  [running]")
	assert.Contains(t, out, "Checkout (checkout)")
}

func TestWatchOnceJSON(t *testing.T) {
	setupCLI(t)
	_, url := startSampleServer(t)

	out, err := executeCommand(t, "", "watch", "build", "h1-7", "--once", "--json", "--server", url)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	var snap run.Snapshot
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &snap))
	assert.Equal(t, testutil.SampleRun, snap.RunID)
	assert.Equal(t, 3, snap.NodeCount())
}

func TestWatchAppliesExpansionState(t *testing.T) {
	setupCLI(t)
	_, url := startSampleServer(t)

	_, err := executeCommand(t, "", "expand", "h1-7", "checkout", "--server", url)
	require.NoError(t, err)

	out, err := executeCommand(t, "", "watch", "build", "h1-7", "--once", "--json", "--server", url)
	require.NoError(t, err)
	var snap run.Snapshot
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &snap))
	assert.True(t, snap.FindNode("checkout").Expanded)
	assert.False(t, snap.FindNode("approve").Expanded)
}

func TestWatchUntilEnded(t *testing.T) {
	setupCLI(t)
	srv, url := startSampleServer(t)

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- executeCommandTo(out, "", "watch", "build", "h1-7", "--json", "--until", "Ended", "--server", url)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.WaitForSubscribers(ctx, 1))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"RunID":"h1-7"`)
	}, 5*time.Second, 10*time.Millisecond, "snapshot frame not rendered")

	for _, f := range []struct {
		tag  string
		node types.NodeID
	}{
		{"sys.node.start", "checkout"},
		{"sys.end.all", ""},
	} {
		frame, err := floeserver.MessageFrame(testutil.SampleFlow, testutil.SampleRun, f.tag, f.node, true, nil)
		require.NoError(t, err)
		srv.Broadcast(frame)
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	var last run.Snapshot
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &last))
	assert.True(t, last.Summary.Ended)
	assert.Equal(t, run.SummaryGood, last.Summary.Status)
}

func TestWatchStreamClosedBeforeEnd(t *testing.T) {
	setupCLI(t)
	srv, url := startSampleServer(t)

	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- executeCommandTo(out, "", "watch", "build", "h1-7", "--json", "--server", url)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.WaitForSubscribers(ctx, 1))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"RunID":"h1-7"`)
	}, 5*time.Second, 10*time.Millisecond)

	srv.DisconnectAll()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "before the run ended")
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchArgumentErrors(t *testing.T) {
	setupCLI(t)

	tests := []struct {
		name        string
		args        []string
		errContains string
	}{
		{name: "malformed run id", args: []string{"watch", "build", "seven"}, errContains: "run"},
		{name: "bad flow id", args: []string{"watch", "bad flow!", "h1-7"}, errContains: "flow"},
		{name: "bad until expression", args: []string{"watch", "build", "h1-7", "--until", "Ended &&"}, errContains: "invalid condition"},
		{name: "missing args", args: []string{"watch", "build"}, errContains: "accepts 2 arg(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestWatchFetchFailure(t *testing.T) {
	setupCLI(t)
	_, url := startSampleServer(t)

	_, err := executeCommand(t, "", "watch", "build", "h1-99", "--once", "--server", url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching run")
}
