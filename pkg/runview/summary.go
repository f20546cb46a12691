package runview

import (
	"time"

	"github.com/dshills/runwatch/pkg/domain/run"
)

// SummaryEmbellisher decorates a run summary with display fields.
type SummaryEmbellisher interface {
	Embellish(s run.Summary, now time.Time) run.Summary
}

// EmbellisherFunc adapts a function to SummaryEmbellisher.
type EmbellisherFunc func(s run.Summary, now time.Time) run.Summary

// Embellish implements SummaryEmbellisher.
func (f EmbellisherFunc) Embellish(s run.Summary, now time.Time) run.Summary {
	return f(s, now)
}

// DefaultEmbellisher labels the summary status and fills its relative start and duration,
// with the same empty-while-running policy used for nodes.
var DefaultEmbellisher SummaryEmbellisher = EmbellisherFunc(embellishSummary)

func embellishSummary(s run.Summary, now time.Time) run.Summary {
	s.Stat = statLabel(s)
	s.StartedAgo = StartedAgo(s.StartTime, now)
	s.Took = ""
	if s.Ended {
		s.Took = Took(s.StartTime, s.EndTime)
	}
	return s
}

func statLabel(s run.Summary) string {
	switch s.Status {
	case run.SummaryGood:
		return "passed"
	case run.SummaryBad:
		return "failed"
	}
	if !s.Ended {
		return "running"
	}
	if s.Status == "" {
		return "ended"
	}
	return s.Status
}
