// Package client talks to the flow server's REST API: fetching run payloads and
// pushing data-node submissions.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
	operr "github.com/dshills/runwatch/pkg/errors"
	"github.com/dshills/runwatch/pkg/runview"
	"github.com/dshills/runwatch/pkg/stream"
	"github.com/dshills/runwatch/pkg/validation"
)

// Header names understood by the server.
const (
	AuthHeader      = "X-Floe-Auth"
	RequestIDHeader = "X-Request-ID"
)

// DefaultAPIPath is the root under which the server mounts its API.
const DefaultAPIPath = "/build/api"

// maxBodySize bounds every response body read.
const maxBodySize = 16 << 20

var (
	// ErrSchema is wrapped when a payload does not have the expected shape.
	ErrSchema = errors.New("payload does not match schema")
	// ErrClosed is returned by calls on a closed client.
	ErrClosed = errors.New("client is closed")
)

// TokenSource supplies the API token for a server. An empty token means
// requests are sent unauthenticated.
type TokenSource interface {
	Token(server string) (string, error)
}

// Config holds configuration for the REST client.
type Config struct {
	// Server is the base URL, e.g. http://localhost:8080.
	Server  string
	APIPath string
	Timeout time.Duration
	Headers map[string]string
	Tokens  TokenSource
	Logger  *zap.Logger
}

// Client is a REST client for one server. It is safe for concurrent use.
type Client struct {
	baseURL    string
	server     string
	headers    map[string]string
	tokens     TokenSource
	logger     *zap.Logger
	httpClient *http.Client

	mu     sync.Mutex
	closed bool
}

// New creates a client for config.Server.
func New(config Config) (*Client, error) {
	if config.Server == "" {
		return nil, fmt.Errorf("server URL cannot be empty")
	}
	u, err := url.Parse(config.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL must use http or https, got %q", u.Scheme)
	}

	apiPath := config.APIPath
	if apiPath == "" {
		apiPath = DefaultAPIPath
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimSuffix(config.Server, "/") + "/" + strings.Trim(apiPath, "/"),
		server:  config.Server,
		headers: config.Headers,
		tokens:  config.Tokens,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// FetchRun retrieves the current payload of a run. The payload is validated
// before decoding; derived display fields are left for the run view to fill.
func (c *Client) FetchRun(ctx context.Context, flowID types.FlowID, runID types.RunID) (*run.Snapshot, error) {
	const op = "fetch run"
	fail := func(err error) *operr.OperationalError {
		return operr.NewOperationalError(op, string(flowID), string(runID), "", err)
	}

	if err := validation.ValidateIdentifier("flow", string(flowID)); err != nil {
		return nil, fail(err)
	}
	if err := validation.ValidateRunID(runID); err != nil {
		return nil, fail(err)
	}

	path := "/flows/" + url.PathEscape(string(flowID)) + "/runs/" + url.PathEscape(string(runID))
	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fail(err).WithStatus(status)
	}

	payload, err := stream.UnwrapSnapshot(body)
	if err != nil {
		return nil, fail(fmt.Errorf("%w: %w", ErrSchema, err)).WithStatus(status)
	}
	if err := validate(snapshotSchema, gojsonschema.NewBytesLoader(payload)); err != nil {
		return nil, fail(err).WithStatus(status)
	}

	snap, err := stream.DecodeSnapshot(payload)
	if err != nil {
		return nil, fail(err).WithStatus(status)
	}
	if snap.FlowID == "" {
		snap.FlowID = flowID
	}
	if snap.RunID == "" {
		snap.RunID = runID
	}

	c.logger.Debug("run fetched",
		zap.String("flow", string(flowID)),
		zap.String("run", string(runID)),
		zap.Int("nodes", snap.NodeCount()))
	return snap, nil
}

// PushData posts a data-node submission.
func (c *Client) PushData(ctx context.Context, sub runview.Submission) error {
	const op = "push data"
	fail := func(err error) *operr.OperationalError {
		return operr.NewOperationalError(op, string(sub.Ref.ID), string(sub.Run), string(sub.Form.ID), err)
	}

	body, err := json.Marshal(sub)
	if err != nil {
		return fail(fmt.Errorf("failed to marshal submission: %w", err))
	}
	if err := validate(submissionSchema, gojsonschema.NewBytesLoader(body)); err != nil {
		return fail(err)
	}

	if _, status, err := c.do(ctx, http.MethodPost, "/push/data", body); err != nil {
		return fail(err).WithStatus(status)
	}

	c.logger.Info("data pushed",
		zap.String("flow", string(sub.Ref.ID)),
		zap.String("run", string(sub.Run)),
		zap.String("node", string(sub.Form.ID)),
		zap.Int("fields", len(sub.Form.Values)))
	return nil
}

// do sends one request and returns the body of a 2xx response. The status is
// returned whenever a response was received.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, 0, ErrClosed
	}
	c.mu.Unlock()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	if c.tokens != nil {
		token, err := c.tokens.Token(c.server)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load API token: %w", err)
		}
		if token != "" {
			req.Header.Set(AuthHeader, token)
		}
	}

	c.logger.Debug("http request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(respBody, "Message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return nil, resp.StatusCode, fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, msg)
	}

	return respBody, resp.StatusCode, nil
}

// Close releases idle connections. Later calls fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
	return nil
}
