package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dshills/runwatch/internal/testutil"
	"github.com/dshills/runwatch/pkg/domain/types"
	operr "github.com/dshills/runwatch/pkg/errors"
	"github.com/dshills/runwatch/pkg/runview"
	"github.com/dshills/runwatch/pkg/stream"
	"github.com/dshills/runwatch/pkg/validation"
)

const server = "http://floe.test"

type staticTokens map[string]string

func (s staticTokens) Token(server string) (string, error) {
	return s[server], nil
}

type failingTokens struct{}

func (failingTokens) Token(string) (string, error) {
	return "", errors.New("keyring locked")
}

func newMockClient(t *testing.T, config Config) (*Client, *httpmock.MockTransport) {
	t.Helper()
	if config.Server == "" {
		config.Server = server
	}
	c, err := New(config)
	require.NoError(t, err)
	mt := httpmock.NewMockTransport()
	c.httpClient.Transport = mt
	return c, mt
}

func samplePayload(t *testing.T) map[string]any {
	t.Helper()
	raw, err := json.Marshal(testutil.SampleSnapshot(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Server: "ws://floe.test"})
	assert.Error(t, err)

	c, err := New(Config{Server: "http://floe.test/", APIPath: "api/"})
	require.NoError(t, err)
	assert.Equal(t, "http://floe.test/api", c.baseURL)

	c, err = New(Config{Server: server})
	require.NoError(t, err)
	assert.Equal(t, server+DefaultAPIPath, c.baseURL)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
}

func TestFetchRun(t *testing.T) {
	c, mt := newMockClient(t, Config{Tokens: staticTokens{server: "secret"}})

	var seen *http.Request
	mt.RegisterResponder(http.MethodGet, server+"/build/api/flows/build/runs/h1-7",
		func(req *http.Request) (*http.Response, error) {
			seen = req
			return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"Payload": samplePayload(t)})
		})

	snap, err := c.FetchRun(context.Background(), testutil.SampleFlow, testutil.SampleRun)
	require.NoError(t, err)
	assert.Equal(t, testutil.SampleRun, snap.RunID)
	assert.Equal(t, 3, snap.NodeCount())
	require.NotNil(t, snap.FindNode("approve"))
	assert.Len(t, snap.FindNode("approve").Fields, 1)

	require.NotNil(t, seen)
	assert.Equal(t, "secret", seen.Header.Get(AuthHeader))
	assert.NotEmpty(t, seen.Header.Get(RequestIDHeader))
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestFetchRunFillsIdentifiers(t *testing.T) {
	c, mt := newMockClient(t, Config{})
	mt.RegisterResponder(http.MethodGet, server+"/build/api/flows/build/runs/h1-7",
		httpmock.NewStringResponder(http.StatusOK, `{"Payload":{"Name":"x","Graph":[[{"ID":"a"}]]}}`))

	snap, err := c.FetchRun(context.Background(), "build", "h1-7")
	require.NoError(t, err)
	assert.Equal(t, types.FlowID("build"), snap.FlowID)
	assert.Equal(t, types.RunID("h1-7"), snap.RunID)
}

func TestFetchRunResponseShapes(t *testing.T) {
	payload := samplePayload(t)
	bodies := map[string]any{
		"bare":     payload,
		"payload":  map[string]any{"Payload": payload},
		"envelope": map[string]any{"Type": "rest", "Value": map[string]any{"Response": map[string]any{"Payload": payload}}},
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			c, mt := newMockClient(t, Config{})
			mt.RegisterResponder(http.MethodGet, server+"/build/api/flows/build/runs/h1-7",
				func(*http.Request) (*http.Response, error) {
					return httpmock.NewJsonResponse(http.StatusOK, body)
				})

			snap, err := c.FetchRun(context.Background(), testutil.SampleFlow, testutil.SampleRun)
			require.NoError(t, err)
			assert.Equal(t, testutil.SampleRun, snap.RunID)
			assert.Equal(t, 3, snap.NodeCount())
		})
	}
}

func TestFetchRunEnvelopeSchemaMismatch(t *testing.T) {
	c, mt := newMockClient(t, Config{})
	mt.RegisterResponder(http.MethodGet, server+"/build/api/flows/build/runs/h1-7",
		httpmock.NewStringResponder(http.StatusOK, `{"Type":"rest","Value":{"Response":{"Payload":{"Name":"x"}}}}`))

	_, err := c.FetchRun(context.Background(), "build", "h1-7")
	assert.ErrorIs(t, err, ErrSchema)
}

func TestFetchRunNoTokenNoHeader(t *testing.T) {
	c, mt := newMockClient(t, Config{Tokens: staticTokens{}})
	mt.RegisterResponder(http.MethodGet, server+"/build/api/flows/build/runs/h1-7",
		func(req *http.Request) (*http.Response, error) {
			assert.Empty(t, req.Header.Get(AuthHeader))
			return httpmock.NewStringResponse(http.StatusOK, `{"Payload":{"Graph":[]}}`), nil
		})

	_, err := c.FetchRun(context.Background(), "build", "h1-7")
	require.NoError(t, err)
}

func TestFetchRunErrors(t *testing.T) {
	tests := []struct {
		name       string
		flow       types.FlowID
		run        types.RunID
		responder  httpmock.Responder
		wantStatus int
		wantIs     error
	}{
		{
			name:   "invalid flow",
			flow:   "../admin",
			run:    "h1-7",
			wantIs: validation.ErrInvalidIdentifier,
		},
		{
			name:   "invalid run",
			flow:   "build",
			run:    "seven",
			wantIs: validation.ErrInvalidIdentifier,
		},
		{
			name:       "not found",
			flow:       "build",
			run:        "h1-7",
			responder:  httpmock.NewStringResponder(http.StatusNotFound, `{"Message":"run not found"}`),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "schema mismatch",
			flow:       "build",
			run:        "h1-7",
			responder:  httpmock.NewStringResponder(http.StatusOK, `{"Payload":{"Graph":[[{"Name":"no id"}]]}}`),
			wantStatus: http.StatusOK,
			wantIs:     ErrSchema,
		},
		{
			name:       "missing graph",
			flow:       "build",
			run:        "h1-7",
			responder:  httpmock.NewStringResponder(http.StatusOK, `{"Payload":{"Name":"x"}}`),
			wantStatus: http.StatusOK,
			wantIs:     ErrSchema,
		},
		{
			name:       "not an object",
			flow:       "build",
			run:        "h1-7",
			responder:  httpmock.NewStringResponder(http.StatusOK, `[1,2]`),
			wantStatus: http.StatusOK,
			wantIs:     stream.ErrMissingPayload,
		},
		{
			name:      "transport",
			flow:      "build",
			run:       "h1-7",
			responder: httpmock.NewErrorResponder(io.ErrUnexpectedEOF),
			wantIs:    io.ErrUnexpectedEOF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mt := newMockClient(t, Config{})
			if tt.responder != nil {
				mt.RegisterResponder(http.MethodGet, server+"/build/api/flows/build/runs/h1-7", tt.responder)
			}

			snap, err := c.FetchRun(context.Background(), tt.flow, tt.run)
			require.Error(t, err)
			assert.Nil(t, snap)

			var op *operr.OperationalError
			require.ErrorAs(t, err, &op)
			assert.Equal(t, "fetch run", op.Operation)
			assert.Equal(t, string(tt.flow), op.FlowID)
			assert.Equal(t, tt.wantStatus, op.StatusCode)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			if tt.responder == nil {
				assert.Zero(t, mt.GetTotalCallCount())
			}
		})
	}
}

func TestFetchRunTokenFailure(t *testing.T) {
	c, mt := newMockClient(t, Config{Tokens: failingTokens{}})
	_, err := c.FetchRun(context.Background(), "build", "h1-7")
	assert.ErrorContains(t, err, "keyring locked")
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestPushData(t *testing.T) {
	c, mt := newMockClient(t, Config{Headers: map[string]string{"User-Agent": "runwatch-test"}})

	var body []byte
	mt.RegisterResponder(http.MethodPost, server+"/build/api/push/data",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			assert.Equal(t, "runwatch-test", req.Header.Get("User-Agent"))
			var err error
			body, err = io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"Message":"OK"}`), nil
		})

	target := runview.Target{FlowID: testutil.SampleFlow, RunID: testutil.SampleRun}
	sub := runview.NewSubmission(target, "approve", map[string]string{"ok": "true"})
	require.NoError(t, c.PushData(context.Background(), sub))

	assert.Equal(t, "build", gjson.GetBytes(body, "Ref.ID").String())
	assert.Equal(t, int64(1), gjson.GetBytes(body, "Ref.Ver").Int())
	assert.Equal(t, "h1-7", gjson.GetBytes(body, "Run").String())
	assert.Equal(t, "approve", gjson.GetBytes(body, "Form.ID").String())
	assert.Equal(t, "true", gjson.GetBytes(body, "Form.Values.ok").String())
}

func TestPushDataRejected(t *testing.T) {
	c, mt := newMockClient(t, Config{})
	mt.RegisterResponder(http.MethodPost, server+"/build/api/push/data",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"Message":"not authenticated"}`))

	sub := runview.NewSubmission(runview.Target{FlowID: "build", RunID: "h1-7"}, "approve", nil)
	err := c.PushData(context.Background(), sub)

	var op *operr.OperationalError
	require.ErrorAs(t, err, &op)
	assert.Equal(t, http.StatusUnauthorized, op.StatusCode)
	assert.Equal(t, "approve", op.NodeID)
	assert.ErrorContains(t, err, "not authenticated")
}

func TestPushDataSchema(t *testing.T) {
	c, mt := newMockClient(t, Config{})

	sub := runview.Submission{Ref: runview.FlowRef{ID: "build", Ver: 0}, Run: "h1-7", Form: runview.Form{ID: "approve"}}
	err := c.PushData(context.Background(), sub)
	assert.ErrorIs(t, err, ErrSchema)
	assert.Zero(t, mt.GetTotalCallCount())
}

func TestClosedClient(t *testing.T) {
	c, _ := newMockClient(t, Config{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.FetchRun(context.Background(), "build", "h1-7")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAgainstFakeServer(t *testing.T) {
	srv, ts := testutil.StartFloeServer(t, nil)
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, srv.SetRun(testutil.SampleFlow, testutil.SampleRun, testutil.SampleSnapshot(started)))

	c, err := New(Config{Server: ts.URL})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	snap, err := c.FetchRun(context.Background(), testutil.SampleFlow, testutil.SampleRun)
	require.NoError(t, err)
	assert.True(t, snap.FindNode("checkout").Started.Equal(started))

	sub := runview.NewSubmission(runview.Target{FlowID: snap.FlowID, RunID: snap.RunID}, "approve", map[string]string{"ok": "yes"})
	require.NoError(t, c.PushData(context.Background(), sub))
	require.Len(t, srv.Submissions(), 1)
}
