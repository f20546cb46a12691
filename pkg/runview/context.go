package runview

import (
	"go.uber.org/zap"

	"github.com/dshills/runwatch/pkg/domain/event"
	"github.com/dshills/runwatch/pkg/domain/run"
)

// Context holds the state of one displayed run. A new Context is created whenever the
// displayed run changes, so nothing leaks from one run to the next.
// It is not safe for concurrent use: a single writer applies events in delivery order.
type Context struct {
	target Target
	deps   Deps
	logger *zap.Logger
	state  *run.Snapshot
}

// NewContext creates a context for target with no snapshot loaded.
func NewContext(target Target, deps Deps, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		target: target,
		deps:   deps,
		logger: logger.With(zap.String("flow", string(target.FlowID)), zap.String("run", string(target.RunID))),
	}
}

// Target returns the displayed run.
func (c *Context) Target() Target {
	return c.target
}

// State returns the current snapshot, or nil before the first delivery.
func (c *Context) State() *run.Snapshot {
	return c.state
}

// Apply routes ev into the context. It returns the state to redraw and true,
// or nil and false when nothing visible changed.
func (c *Context) Apply(ev event.Event) (*run.Snapshot, bool) {
	next, outcome := Route(c.state, ev, c.target, c.deps)

	if ce := c.logger.Check(zap.DebugLevel, "event routed"); ce != nil {
		fields := []zap.Field{zap.Stringer("outcome", outcome)}
		if inc, ok := ev.(event.IncrementalEvent); ok {
			fields = append(fields,
				zap.String("tag", string(inc.Msg.Tag)),
				zap.String("node", string(inc.Msg.SourceNode)),
				zap.String("event_flow", string(inc.Msg.RunRef.FlowID)),
				zap.String("event_run", string(inc.Msg.RunRef.RunID())),
			)
		}
		ce.Write(fields...)
	}

	if !outcome.Redraw() {
		return nil, false
	}
	c.state = next
	return next, true
}
