// Package floeserver provides a fake flow server (REST + WebSocket) for development and testing.
package floeserver

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults match the paths the real server mounts.
const (
	DefaultRootPath = "/build/api"
	DefaultWSPath   = "/ws"
)

// ServerConfig configures the fake server.
type ServerConfig struct {
	RootPath string // API root, e.g. /build/api
	WSPath   string // WebSocket endpoint

	// AuthToken, when set, is required in the X-Floe-Auth header of every API request.
	AuthToken string

	// FrameInterval is the default pause between scripted frames.
	FrameInterval time.Duration
}

// DefaultConfig returns the configuration of an unauthenticated server on the standard paths.
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		RootPath:      DefaultRootPath,
		WSPath:        DefaultWSPath,
		FrameInterval: 500 * time.Millisecond,
	}
}

// LoadConfig applies environment overrides to DefaultConfig.
//
// Environment variables:
//   - FAKEFLOE_ROOT_PATH: API root
//   - FAKEFLOE_WS_PATH: WebSocket endpoint
//   - FAKEFLOE_AUTH_TOKEN: required X-Floe-Auth value
//   - FAKEFLOE_FRAME_INTERVAL: pause between scripted frames (Go duration)
func LoadConfig() *ServerConfig {
	config := DefaultConfig()

	if v := os.Getenv("FAKEFLOE_ROOT_PATH"); v != "" {
		config.RootPath = v
	}
	if v := os.Getenv("FAKEFLOE_WS_PATH"); v != "" {
		config.WSPath = v
	}
	if v := os.Getenv("FAKEFLOE_AUTH_TOKEN"); v != "" {
		config.AuthToken = v
	}
	if v := os.Getenv("FAKEFLOE_FRAME_INTERVAL"); v != "" {
		// If parsing fails, keep the default
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			config.FrameInterval = d
		}
	}

	return config
}

// Validate checks that both paths are absolute and distinct.
func (c *ServerConfig) Validate() error {
	if !strings.HasPrefix(c.RootPath, "/") {
		return fmt.Errorf("root path must start with /: %q", c.RootPath)
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("websocket path must start with /: %q", c.WSPath)
	}
	if strings.TrimSuffix(c.RootPath, "/") == strings.TrimSuffix(c.WSPath, "/") {
		return fmt.Errorf("root path and websocket path must differ")
	}
	if c.FrameInterval < 0 {
		return fmt.Errorf("frame interval cannot be negative, got %v", c.FrameInterval)
	}
	return nil
}
