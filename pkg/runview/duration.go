package runview

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dshills/runwatch/pkg/domain/run"
)

// FormatElapsed renders d as H:MM:SS, truncating sub-second precision.
// Negative durations (clock skew between hosts) render as zero.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// Took is the display duration of a node: empty until the node has stopped,
// then the elapsed time between start and stop. A running node never shows a live duration.
func Took(started, stopped run.Timestamp) string {
	if !stopped.IsSet() || !started.IsSet() {
		return ""
	}
	return FormatElapsed(stopped.Sub(started.Time))
}

// StartedAgo renders started relative to now, or empty if it has not started.
func StartedAgo(started run.Timestamp, now time.Time) string {
	if !started.IsSet() {
		return ""
	}
	return humanize.RelTime(started.Time, now, "ago", "from now")
}
