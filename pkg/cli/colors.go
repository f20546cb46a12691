package cli

import "github.com/dshills/runwatch/pkg/domain/run"

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// colorize wraps s in color unless noColor is set.
func colorize(s, color string, noColor bool) string {
	if noColor || color == "" {
		return s
	}
	return color + s + colorReset
}

// colorizeStatus returns a colorized node or run status
func colorizeStatus(status string, noColor bool) string {
	var color string
	switch status {
	case run.StatusFinished, "passed":
		color = colorGreen
	case run.StatusRunning:
		color = colorCyan
	case run.StatusWaiting:
		color = colorYellow
	case "failed":
		color = colorRed
	case "", "ended":
		color = colorGray
	}
	return colorize(status, color, noColor)
}

// getNodeSymbol returns a single-character marker for a node's status
func getNodeSymbol(n run.Node) string {
	switch n.Status {
	case run.StatusFinished:
		return "✓"
	case run.StatusRunning:
		return "▶"
	case run.StatusWaiting:
		if n.Type == run.TypeData && n.Enabled {
			return "?"
		}
		return "…"
	default:
		return "·"
	}
}
