package floeserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
)

// AuthHeader carries the API token.
const AuthHeader = "X-Floe-Auth"

// Server is a fake flow server holding run payloads in memory and broadcasting
// frames to every connected WebSocket client.
type Server struct {
	config *ServerConfig
	logger *zap.Logger
	router *httprouter.Router

	mu          sync.Mutex
	runs        map[string]json.RawMessage
	submissions []json.RawMessage
	conns       map[*websocket.Conn]struct{}
	joined      chan struct{}
}

// NewServer creates a server for config. A nil config means DefaultConfig.
func NewServer(config *ServerConfig, logger *zap.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		logger: logger,
		runs:   make(map[string]json.RawMessage),
		conns:  make(map[*websocket.Conn]struct{}),
		joined: make(chan struct{}, 16),
	}

	rp := strings.TrimSuffix(config.RootPath, "/")
	r := httprouter.New()
	r.HandleMethodNotAllowed = false
	r.GET(rp+"/flows/:flid/runs/:runid", s.auth(s.handleRun))
	r.POST(rp+"/push/data", s.auth(s.handlePushData))
	r.GET(config.WSPath, s.handleWS)
	s.router = r

	return s, nil
}

// Handler returns the HTTP handler serving the API and the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// SetRun stores the payload returned for flowID/runID. payload is marshalled once.
func (s *Server) SetRun(flowID types.FlowID, runID types.RunID, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal run payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runKey(flowID, runID)] = raw
	return nil
}

// Submissions returns the bodies received on the data push endpoint, oldest first.
func (s *Server) Submissions() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]json.RawMessage, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// Subscribers returns the number of connected WebSocket clients.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// WaitForSubscribers blocks until at least n clients are connected.
func (s *Server) WaitForSubscribers(ctx context.Context, n int) error {
	for {
		if s.Subscribers() >= n {
			return nil
		}
		select {
		case <-s.joined:
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Broadcast sends frame as a text message to every connected client.
// Clients that fail to receive are dropped.
func (s *Server) Broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		if err := websocket.Message.Send(conn, string(frame)); err != nil {
			s.logger.Debug("dropping websocket client", zap.Error(err))
			delete(s.conns, conn)
			_ = conn.Close()
		}
	}
}

// BroadcastJSON marshals v and broadcasts it.
func (s *Server) BroadcastJSON(v any) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	s.Broadcast(frame)
	return nil
}

// DisconnectAll closes every WebSocket connection.
func (s *Server) DisconnectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

// ListenAndServe serves on addr until ctx is cancelled. The bound address is
// sent on ready once the listener is open.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready chan<- string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		s.DisconnectAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if ready != nil {
		ready <- ln.Addr().String()
	}
	s.logger.Info("fake server listening", zap.String("addr", ln.Addr().String()))

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) auth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if s.config.AuthToken != "" && r.Header.Get(AuthHeader) != s.config.AuthToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"Message": "not authenticated"})
			return
		}
		next(w, r, ps)
	}
}

func (s *Server) handleRun(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	key := runKey(types.FlowID(ps.ByName("flid")), types.RunID(ps.ByName("runid")))

	s.mu.Lock()
	raw, ok := s.runs[key]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"Message": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"Payload": raw})
}

func (s *Server) handlePushData(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"Message": "invalid body"})
		return
	}

	s.mu.Lock()
	s.submissions = append(s.submissions, json.RawMessage(body))
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"Message": "OK"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	websocket.Handler(s.serveConn).ServeHTTP(w, r)
}

func (s *Server) serveConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	select {
	case s.joined <- struct{}{}:
	default:
	}
	s.logger.Debug("websocket client connected", zap.String("remote", conn.Request().RemoteAddr))

	// Clients never send; block until the connection goes away.
	_, _ = io.Copy(io.Discard, conn)

	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func runKey(flowID types.FlowID, runID types.RunID) string {
	return string(flowID) + "/" + string(runID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// SnapshotFrame wraps snap in the rest envelope.
func SnapshotFrame(snap *run.Snapshot) map[string]any {
	return map[string]any{
		"Type":  "rest",
		"Value": map[string]any{"Response": map[string]any{"Payload": snap}},
	}
}
