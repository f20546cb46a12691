package watch

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dshills/runwatch/pkg/domain/run"
)

// Condition is a compiled stop condition evaluated against every redraw.
//
// The expression sees:
//
//	Ended       bool                 run has finished
//	Good        bool                 run finished good
//	Status      string               summary status
//	Summary     run.Summary
//	Nodes       []run.Node           every node in display order
//	NodeStatus  map[string]string    node ID to status
//	Waiting     []string             IDs of enabled data nodes waiting for input
//	Logs        map[string][]string  node ID to output lines
//
// Examples: `Ended`, `NodeStatus["deploy"] == "finished"`, `len(Waiting) > 0`,
// `any(Logs["build"], {# contains "FAIL"})`.
type Condition struct {
	src     string
	program *vm.Program
}

// CompileCondition compiles src. The expression must evaluate to a boolean.
func CompileCondition(src string) (*Condition, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("condition cannot be empty")
	}

	program, err := expr.Compile(src, expr.Env(conditionEnv(&run.Snapshot{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", src, err)
	}
	return &Condition{src: src, program: program}, nil
}

// Match evaluates the condition against state. A nil state never matches.
func (c *Condition) Match(state *run.Snapshot) (bool, error) {
	if state == nil {
		return false, nil
	}
	out, err := expr.Run(c.program, conditionEnv(state))
	if err != nil {
		return false, fmt.Errorf("evaluating condition %q: %w", c.src, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q returned %T, want bool", c.src, out)
	}
	return b, nil
}

func (c *Condition) String() string {
	return c.src
}

func conditionEnv(s *run.Snapshot) map[string]any {
	nodes := make([]run.Node, 0, s.NodeCount())
	status := make(map[string]string, s.NodeCount())
	logs := make(map[string][]string, s.NodeCount())
	waiting := []string{}

	s.EachNode(func(n *run.Node) {
		nodes = append(nodes, *n)
		status[string(n.ID)] = n.Status
		logs[string(n.ID)] = n.Logs
		if n.Type == run.TypeData && n.Enabled && n.Status == run.StatusWaiting {
			waiting = append(waiting, string(n.ID))
		}
	})

	return map[string]any{
		"Ended":      s.Summary.Ended,
		"Good":       s.Summary.Ended && s.Summary.Status == run.SummaryGood,
		"Status":     s.Summary.Status,
		"Summary":    s.Summary,
		"Nodes":      nodes,
		"NodeStatus": status,
		"Waiting":    waiting,
		"Logs":       logs,
	}
}
