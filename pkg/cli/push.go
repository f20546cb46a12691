package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/runwatch/pkg/domain/event"
	"github.com/dshills/runwatch/pkg/domain/run"
	"github.com/dshills/runwatch/pkg/domain/types"
	"github.com/dshills/runwatch/pkg/runview"
	"github.com/dshills/runwatch/pkg/validation"
)

// NewPushCommand creates the push command
func NewPushCommand() *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "push <flow-id> <run-id> <node-id>",
		Short: "Submit form data to a waiting data node",
		Long: `Submit values for a data node of a run. The run is fetched first and the
submission is refused unless the node is a data node that is currently
accepting input.

Examples:
  runwatch push build h1-7 approve --field ok=true
  runwatch push build h1-7 release --field version=1.4.0 --field notes="hotfix"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}
			if err := validation.ValidateIdentifier("node", args[2]); err != nil {
				return err
			}
			nodeID := types.NodeID(args[2])

			values, err := parseFieldValues(fields)
			if err != nil {
				return err
			}

			settings, err := LoadSettings()
			if err != nil {
				return err
			}
			svc, err := openServices(settings)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			ctx := cmd.Context()
			payload, err := svc.client.FetchRun(ctx, target.FlowID, target.RunID)
			if err != nil {
				return fmt.Errorf("failed to fetch run: %w", err)
			}

			view := runview.NewContext(target, svc.deps(), logger)
			state, ok := view.Apply(event.SnapshotEvent{Payload: payload})
			if !ok {
				return fmt.Errorf("server returned an unusable payload for run %s", target.RunID)
			}

			if err := checkFieldNames(state.FindNode(nodeID), values); err != nil {
				return err
			}

			sub, err := runview.PrepareSubmission(state, target, nodeID, values)
			if err != nil {
				return err
			}
			if err := svc.client.PushData(ctx, sub); err != nil {
				return fmt.Errorf("failed to push data: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Data submitted to node '%s' of run '%s'\n", nodeID, target.RunID)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Field value as id=value (repeatable)")

	return cmd
}

// parseFieldValues turns id=value pairs into a map. Values may contain '='.
func parseFieldValues(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		id, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field %q: expected id=value", pair)
		}
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("invalid field %q: empty id", pair)
		}
		if _, dup := values[id]; dup {
			return nil, fmt.Errorf("field %q given more than once", id)
		}
		values[id] = value
	}
	return values, nil
}

// checkFieldNames rejects values for fields the node's form does not declare.
// Nodes that declare no fields accept anything.
func checkFieldNames(n *run.Node, values map[string]string) error {
	if n == nil || len(n.Fields) == 0 {
		return nil
	}
	known := make(map[string]bool, len(n.Fields))
	ids := make([]string, 0, len(n.Fields))
	for _, f := range n.Fields {
		known[f.ID] = true
		ids = append(ids, f.ID)
	}
	sort.Strings(ids)
	for id := range values {
		if !known[id] {
			return fmt.Errorf("node '%s' has no field %q (fields: %s)", n.ID, id, strings.Join(ids, ", "))
		}
	}
	return nil
}
