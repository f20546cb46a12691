package watch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/runwatch/pkg/domain/run"
)

// DefaultSubscriberBuffer is the number of frames queued per subscriber.
const DefaultSubscriberBuffer = 16

// Frame is one redraw of the displayed run.
type Frame struct {
	// Seq increases by one for every emitted frame.
	Seq uint64
	// At is when the frame was emitted.
	At time.Time
	// State is a private deep copy; subscribers may keep or mutate it.
	State *run.Snapshot
}

// subscription represents a single frame subscriber.
type subscription struct {
	id string
	ch chan Frame
}

// Notifier broadcasts redraw frames to subscribers without ever blocking the writer.
// When a subscriber's buffer is full its oldest queued frame is discarded, so a
// slow reader always sees the newest state next.
type Notifier struct {
	mu          sync.RWMutex
	buffer      int
	subscribers []*subscription
	closed      bool
	last        *run.Snapshot

	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewNotifier creates a notifier whose subscribers queue up to buffer frames.
func NewNotifier(buffer int) *Notifier {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Notifier{buffer: buffer}
}

// Subscribe registers a subscriber and returns its ID and frame channel.
// On a closed notifier the channel is already closed.
func (n *Notifier) Subscribe() (string, <-chan Frame) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := uuid.NewString()
	if n.closed {
		ch := make(chan Frame)
		close(ch)
		return id, ch
	}

	sub := &subscription{id: id, ch: make(chan Frame, n.buffer)}
	n.subscribers = append(n.subscribers, sub)
	return id, sub.ch
}

// Unsubscribe closes and removes a subscription. Unknown IDs are ignored.
func (n *Notifier) Unsubscribe(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, sub := range n.subscribers {
		if sub.id == id {
			close(sub.ch)
			n.subscribers = append(n.subscribers[:i], n.subscribers[i+1:]...)
			return
		}
	}
}

// Emit sends a copy of state to every subscriber.
func (n *Notifier) Emit(state *run.Snapshot, at time.Time) {
	if state == nil {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	n.last = state.Clone()
	seq := n.seq.Add(1)
	for _, sub := range n.subscribers {
		f := Frame{Seq: seq, At: at, State: state.Clone()}
		select {
		case sub.ch <- f:
			continue
		default:
		}
		// Full: discard the oldest frame and queue the new one.
		select {
		case <-sub.ch:
			n.dropped.Add(1)
		default:
		}
		select {
		case sub.ch <- f:
		default:
			n.dropped.Add(1)
		}
	}
}

// Last returns a copy of the most recently emitted state, or nil.
func (n *Notifier) Last() *run.Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.last.Clone()
}

// Dropped returns how many frames were discarded for slow subscribers.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Close closes the notifier and all subscriber channels.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for _, sub := range n.subscribers {
		close(sub.ch)
	}
	n.subscribers = nil
}
