package run

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// NotOccurred is the wire literal the server uses for an instant that has not happened yet.
// It must be preserved byte for byte when re-encoding.
const NotOccurred = "0001-01-01T00:00:00Z"

// Timestamp is an ISO-8601 instant that may be unset.
// The zero value is unset and encodes as NotOccurred.
type Timestamp struct {
	time.Time
}

// At returns a set Timestamp for t.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// IsSet reports whether the timestamp holds a real instant.
func (ts Timestamp) IsSet() bool {
	return !ts.Time.IsZero()
}

// String renders the wire form.
func (ts Timestamp) String() string {
	if !ts.IsSet() {
		return NotOccurred
	}
	return ts.Time.UTC().Format(time.RFC3339Nano)
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}

// UnmarshalJSON implements json.Unmarshaler. The sentinel, an empty string and null all decode to unset.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	return ts.parse(s)
}

func (ts *Timestamp) parse(s string) error {
	if s == "" || s == NotOccurred {
		*ts = Timestamp{}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*ts = At(t)
	return nil
}

// ParseTimestamp parses the wire form of a timestamp.
func ParseTimestamp(s string) (Timestamp, error) {
	var ts Timestamp
	err := ts.parse(s)
	return ts, err
}
