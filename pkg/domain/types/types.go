// Package types defines core domain identifiers for runwatch.
package types

import (
	"fmt"
	"strings"
)

// RunIDSeparator joins the host identifier and the run sequence in a RunID.
const RunIDSeparator = "-"

// FlowID identifies a flow definition on the server.
type FlowID string

// HostID identifies the host that executes a run.
type HostID string

// NodeID is a unique identifier for a node within a run.
type NodeID string

// RunID is the composite "<host>-<seq>" identifier of a run, unique within a flow.
type RunID string

// NewRunID composes a RunID from a host identifier and a run sequence identifier.
func NewRunID(host HostID, seq string) RunID {
	return RunID(string(host) + RunIDSeparator + seq)
}

// ParseRunID splits a RunID into its host and sequence parts.
// Host identifiers may themselves contain the separator, so the split is on the last one.
func ParseRunID(id RunID) (HostID, string, error) {
	s := string(id)
	i := strings.LastIndex(s, RunIDSeparator)
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("malformed run id %q: expected <host>%s<seq>", s, RunIDSeparator)
	}
	return HostID(s[:i]), s[i+1:], nil
}

// String returns the string representation of a RunID.
func (id RunID) String() string {
	return string(id)
}

// IsZero returns true if the RunID is the zero value.
func (id RunID) IsZero() bool {
	return id == ""
}

// String returns the string representation of a FlowID.
func (id FlowID) String() string {
	return string(id)
}
