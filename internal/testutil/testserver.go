// Package testutil holds helpers shared by package tests.
package testutil

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dshills/runwatch/internal/testutil/floeserver"
	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

// Identifiers of the sample run.
const (
	SampleFlow types.FlowID = "build"
	SampleHost types.HostID = "h1"
	SampleSeq               = "7"
	SampleRun  types.RunID  = "h1-7"
)

// StartFloeServer starts a fake flow server on a loopback listener and
// registers its shutdown with t.
func StartFloeServer(t testing.TB, config *floeserver.ServerConfig) (*floeserver.Server, *httptest.Server) {
	t.Helper()

	srv, err := floeserver.NewServer(config, nil)
	if err != nil {
		t.Fatalf("failed to create fake server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.DisconnectAll()
		ts.Close()
	})
	return srv, ts
}

// SampleSnapshot returns a run with one exec node and one data node in the
// first level and a merge node in the second. The exec node started at started.
func SampleSnapshot(started time.Time) *run.Snapshot {
	return &run.Snapshot{
		FlowID:   SampleFlow,
		FlowName: "Build",
		RunID:    SampleRun,
		Name:     "build #7",
		Summary: run.Summary{
			StartTime: run.At(started),
		},
		Triggers: []run.Trigger{
			{ID: "push", Name: "git push", Type: "data", Enabled: false},
		},
		Graph: []run.Level{
			{
				{ID: "checkout", Name: "Checkout", Type: run.TypeExec, Class: run.ClassTask, Enabled: true, Started: run.At(started)},
				{ID: "approve", Name: "Approve", Type: run.TypeData, Class: run.ClassTask, Enabled: true,
					Fields: []run.Field{{ID: "ok", Prompt: "Ship it?", Type: "bool"}}},
			},
			{
				{ID: "join", Name: "Join", Type: run.TypeMerge, Class: run.ClassMerge, Enabled: true},
			},
		},
	}
}
