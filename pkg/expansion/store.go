// Package expansion persists the per-node expand/collapse toggles of the run view.
// The flags are UI state: they never travel with a run snapshot and are re-read
// whenever the view is recomputed.
package expansion

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/runwatch/pkg/domain/types"
)

// Store persists expand/collapse flags keyed by run and node.
type Store interface {
	// Set records whether nodeID is expanded in runID.
	Set(ctx context.Context, runID types.RunID, nodeID types.NodeID, expanded bool) error
	// Load returns every flag recorded for runID. Nodes never toggled are absent.
	Load(ctx context.Context, runID types.RunID) (map[types.NodeID]bool, error)
	// Delete forgets every flag recorded for runID.
	Delete(ctx context.Context, runID types.RunID) error
	// Close releases any resources held by the store.
	Close() error
}

// MemoryStore is an in-process Store. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[types.RunID]map[types.NodeID]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: make(map[types.RunID]map[types.NodeID]bool)}
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, runID types.RunID, nodeID types.NodeID, expanded bool) error {
	if runID.IsZero() || nodeID == "" {
		return fmt.Errorf("run ID and node ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	nodes, ok := m.flags[runID]
	if !ok {
		nodes = make(map[types.NodeID]bool)
		m.flags[runID] = nodes
	}
	nodes[nodeID] = expanded
	return nil
}

// Load implements Store. The returned map is a copy.
func (m *MemoryStore) Load(_ context.Context, runID types.RunID) (map[types.NodeID]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[types.NodeID]bool, len(m.flags[runID]))
	for k, v := range m.flags[runID] {
		out[k] = v
	}
	return out, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, runID types.RunID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.flags, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
