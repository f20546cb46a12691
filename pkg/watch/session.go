// Package watch keeps one run view current: it fetches the run, follows the
// event stream and hands every redraw to subscribers.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/dshills/runwatch/pkg/domain/event"
	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
	"github.com/dshills/runwatch/pkg/runview"
)

// ErrStreamEnded is returned by Run when the event stream closes cleanly
// before the session was told to stop.
var ErrStreamEnded = errors.New("event stream ended")

// Fetcher retrieves the current payload of a run.
type Fetcher interface {
	FetchRun(ctx context.Context, flowID types.FlowID, runID types.RunID) (*run.Snapshot, error)
}

// EventSource delivers decoded events. Events is closed when the source ends;
// Err then reports why.
type EventSource interface {
	Connect(ctx context.Context) error
	Events() <-chan event.Event
	Err() error
	Close() error
}

// Config configures a Session.
type Config struct {
	Target  runview.Target
	Fetcher Fetcher
	// Source may be nil, in which case the session stops after the first snapshot.
	Source   EventSource
	Deps     runview.Deps
	Notifier *Notifier
	// Until, when set, stops the session at the first redraw it matches.
	Until  *Condition
	Logger *zap.Logger
}

// Session joins one fetch and one event stream into a runview.Context.
// The stream is connected before the fetch starts so no event after the
// snapshot is missed; events that arrive before it are dropped by the router.
type Session struct {
	config Config
	clock  clock.Clock
	logger *zap.Logger
	view   *runview.Context
}

// NewSession validates config and creates a session.
func NewSession(config Config) (*Session, error) {
	if config.Fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if config.Target.FlowID == "" || config.Target.RunID.IsZero() {
		return nil, fmt.Errorf("target flow and run cannot be empty")
	}
	if config.Notifier == nil {
		config.Notifier = NewNotifier(0)
	}
	if config.Deps.Clock == nil {
		config.Deps.Clock = clock.New()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("watch")

	return &Session{
		config: config,
		clock:  config.Deps.Clock,
		logger: logger,
		view:   runview.NewContext(config.Target, config.Deps, logger),
	}, nil
}

// Notifier returns the notifier frames are emitted on.
func (s *Session) Notifier() *Notifier {
	return s.config.Notifier
}

type fetchResult struct {
	snap *run.Snapshot
	err  error
}

// Run drives the session until the Until condition matches, the stream ends,
// a fetch fails or ctx is cancelled. It returns nil when the condition matched,
// or when there is no source and the snapshot was applied.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	var events <-chan event.Event
	if src := s.config.Source; src != nil {
		if err := src.Connect(ctx); err != nil {
			return fmt.Errorf("connecting event stream: %w", err)
		}
		defer func() { _ = src.Close() }()
		events = src.Events()
	}

	fetched := make(chan fetchResult, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		snap, err := s.config.Fetcher.FetchRun(ctx, s.config.Target.FlowID, s.config.Target.RunID)
		fetched <- fetchResult{snap: snap, err: err}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case res := <-fetched:
			fetched = nil
			if res.err != nil {
				return fmt.Errorf("fetching run: %w", res.err)
			}
			done, err := s.apply(event.SnapshotEvent{Payload: res.snap})
			if err != nil || done {
				return err
			}
			if events == nil {
				return nil
			}

		case ev, ok := <-events:
			if !ok {
				if err := s.config.Source.Err(); err != nil {
					return err
				}
				return ErrStreamEnded
			}
			done, err := s.apply(ev)
			if err != nil || done {
				return err
			}
		}
	}
}

// apply routes ev, emits a frame on redraw and reports whether the stop condition matched.
func (s *Session) apply(ev event.Event) (bool, error) {
	state, redraw := s.view.Apply(ev)
	if !redraw {
		return false, nil
	}

	s.config.Notifier.Emit(state, s.clock.Now())

	if s.config.Until == nil {
		return false, nil
	}
	matched, err := s.config.Until.Match(state)
	if err != nil {
		return false, err
	}
	if matched {
		s.logger.Info("stop condition met", zap.Stringer("until", s.config.Until))
	}
	return matched, nil
}
