package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/dshills/runwatch/pkg/domain/event"
)

// DefaultBuffer is the number of decoded events held while the consumer is busy.
const DefaultBuffer = 64

// WSConfig holds configuration for the WebSocket event source.
type WSConfig struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// Origin defaults to the http(s) form of URL.
	Origin  string
	Headers map[string]string
	Buffer  int
	Logger  *zap.Logger
}

// WSClient reads frames from the server's WebSocket endpoint and decodes them into events.
// Frames that fail to decode are logged and skipped.
type WSClient struct {
	config WSConfig
	logger *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool

	events chan event.Event
	done   chan struct{}
	err    error
}

// NewWSClient creates an unconnected client.
func NewWSClient(config WSConfig) (*WSClient, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("websocket URL must use ws or wss, got %q", u.Scheme)
	}
	if config.Origin == "" {
		origin := *u
		origin.Scheme = strings.Replace(u.Scheme, "ws", "http", 1)
		origin.Path = "/"
		origin.RawQuery = ""
		config.Origin = origin.String()
	}
	if config.Buffer <= 0 {
		config.Buffer = DefaultBuffer
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WSClient{
		config: config,
		logger: logger.With(zap.String("url", config.URL)),
		events: make(chan event.Event, config.Buffer),
		done:   make(chan struct{}),
	}, nil
}

// Connect dials the endpoint and starts the background reader.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client closed")
	}
	if c.connected {
		return fmt.Errorf("already connected")
	}

	cfg, err := websocket.NewConfig(c.config.URL, c.config.Origin)
	if err != nil {
		return fmt.Errorf("failed to build websocket config: %w", err)
	}
	cfg.Header = http.Header{}
	for key, value := range c.config.Headers {
		cfg.Header.Set(key, value)
	}

	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket endpoint: %w", err)
	}

	c.conn = conn
	c.connected = true
	c.logger.Debug("stream connected")

	go c.read(conn)
	return nil
}

// Events delivers decoded events in arrival order. It is closed when the
// connection ends; Err then reports why.
func (c *WSClient) Events() <-chan event.Event {
	return c.events
}

// Err returns the error that ended the stream, or nil for a clean close.
// It is only meaningful after Events has been closed.
func (c *WSClient) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *WSClient) read(conn *websocket.Conn) {
	defer close(c.events)

	for {
		var frame []byte
		if err := websocket.Message.Receive(conn, &frame); err != nil {
			c.finish(err)
			return
		}

		ev, err := Decode(frame)
		if err != nil {
			c.logger.Debug("frame skipped", zap.Error(err), zap.ByteString("frame", truncate(frame, 256)))
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *WSClient) finish(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.closed || errors.Is(err, io.EOF) {
		c.logger.Debug("stream ended")
		return
	}
	c.err = fmt.Errorf("websocket read failed: %w", err)
	c.logger.Warn("stream failed", zap.Error(err))
}

// Close terminates the connection. The Events channel is closed once the reader exits.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.connected = false
	close(c.done)

	if c.conn != nil {
		return c.conn.Close()
	}
	close(c.events)
	return nil
}

// IsConnected returns true while the reader is running.
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// EndpointURL derives the WebSocket endpoint from the server base URL.
func EndpointURL(server, path string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
