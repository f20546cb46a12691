package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/runwatch/pkg/domain/run"
)

// collapsedLogLines is how many trailing log lines a collapsed node shows.
const collapsedLogLines = 1

// renderText writes a plain-text view of a run.
func renderText(w io.Writer, s *run.Snapshot, noColor bool) error {
	if s == nil {
		return nil
	}
	var b strings.Builder

	title := s.Name
	if title == "" {
		title = string(s.RunID)
	}
	flow := s.FlowName
	if flow == "" {
		flow = string(s.FlowID)
	}
	fmt.Fprintf(&b, "%s / %s  [%s]", colorize(flow, colorBold, noColor), title, colorizeStatus(s.Summary.Stat, noColor))
	if s.Summary.StartedAgo != "" {
		fmt.Fprintf(&b, "  started %s", s.Summary.StartedAgo)
	}
	if s.Summary.Took != "" {
		fmt.Fprintf(&b, "  took %s", s.Summary.Took)
	}
	b.WriteString("\n")

	for _, tr := range s.Triggers {
		state := "closed"
		if tr.Enabled {
			state = "open"
		}
		fmt.Fprintf(&b, "  trigger %s (%s) %s\n", displayName(tr.Name, string(tr.ID)), tr.ID, colorize(state, colorGray, noColor))
		if tr.Enabled {
			writeFields(&b, tr.Fields, "    ")
		}
	}

	for i, level := range s.Graph {
		fmt.Fprintf(&b, "  %s\n", colorize(fmt.Sprintf("level %d", i), colorGray, noColor))
		for _, n := range level {
			writeNode(&b, n, noColor)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeNode(b *strings.Builder, n run.Node, noColor bool) {
	fmt.Fprintf(b, "    %s %s (%s)", getNodeSymbol(n), displayName(n.Name, string(n.ID)), n.ID)
	if n.Status != "" {
		fmt.Fprintf(b, " %s", colorizeStatus(n.Status, noColor))
	}
	if n.StartedAgo != "" {
		fmt.Fprintf(b, "  started %s", n.StartedAgo)
	}
	if n.Took != "" {
		fmt.Fprintf(b, "  took %s", n.Took)
	}
	b.WriteString("\n")

	logs := n.Logs
	if !n.Expanded && len(logs) > collapsedLogLines {
		fmt.Fprintf(b, "      %s\n", colorize(fmt.Sprintf("(%d earlier lines hidden)", len(logs)-collapsedLogLines), colorGray, noColor))
		logs = logs[len(logs)-collapsedLogLines:]
	}
	for _, line := range logs {
		fmt.Fprintf(b, "      | %s\n", line)
	}

	if n.Type == run.TypeData && n.Enabled {
		writeFields(b, n.Fields, "      ")
	}
}

func writeFields(b *strings.Builder, fields []run.Field, indent string) {
	for _, f := range fields {
		prompt := f.Prompt
		if prompt == "" {
			prompt = f.ID
		}
		fmt.Fprintf(b, "%s%s = %q", indent, prompt, f.Value)
		if f.Type != "" {
			fmt.Fprintf(b, " [%s]", f.Type)
		}
		fmt.Fprintf(b, "  (--field %s=...)\n", f.ID)
	}
}

func displayName(name, id string) string {
	if name == "" {
		return id
	}
	return name
}

// renderJSON writes one snapshot as a single JSON line.
func renderJSON(w io.Writer, s *run.Snapshot) error {
	if s == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(s)
}
