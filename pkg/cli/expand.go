package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/runwatch/pkg/domain/types"
	"github.com/dshills/runwatch/pkg/validation"
)

// NewExpandCommand creates the expand command
func NewExpandCommand() *cobra.Command {
	var (
		collapse bool
		reset    bool
		list     bool
	)

	cmd := &cobra.Command{
		Use:   "expand <run-id> [node-id...]",
		Short: "Expand or collapse node output in the run view",
		Long: `Record which nodes of a run show their full log output. The choice is kept
in the local expansion store and applied by every later watch of the run.

Examples:
  runwatch expand h1-7 checkout
  runwatch expand h1-7 checkout test --collapse
  runwatch expand h1-7 --list
  runwatch expand h1-7 --reset`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := types.RunID(args[0])
			if err := validation.ValidateRunID(runID); err != nil {
				return err
			}
			nodes := args[1:]
			for _, id := range nodes {
				if err := validation.ValidateIdentifier("node", id); err != nil {
					return err
				}
			}
			if len(nodes) == 0 && !reset && !list {
				return fmt.Errorf("at least one node ID is required (or use --list / --reset)")
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
			out := cmd.OutOrStdout()

			if reset {
				if err := svc.store.Delete(ctx, runID); err != nil {
					return fmt.Errorf("failed to reset expansion state: %w", err)
				}
				_, _ = fmt.Fprintf(out, "✓ Expansion state cleared for run '%s'\n", runID)
			}

			for _, id := range nodes {
				if err := svc.store.Set(ctx, runID, types.NodeID(id), !collapse); err != nil {
					return fmt.Errorf("failed to update node '%s': %w", id, err)
				}
			}
			if len(nodes) > 0 {
				verb := "Expanded"
				if collapse {
					verb = "Collapsed"
				}
				_, _ = fmt.Fprintf(out, "✓ %s %d node(s) in run '%s'\n", verb, len(nodes), runID)
			}

			if list {
				states, err := svc.store.Load(ctx, runID)
				if err != nil {
					return fmt.Errorf("failed to load expansion state: %w", err)
				}
				if len(states) == 0 {
					_, _ = fmt.Fprintf(out, "No expansion state stored for run '%s'.\n", runID)
					return nil
				}
				ids := make([]string, 0, len(states))
				for id := range states {
					ids = append(ids, string(id))
				}
				sort.Strings(ids)

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "NODE\tSTATE")
				for _, id := range ids {
					state := "collapsed"
					if states[types.NodeID(id)] {
						state = "expanded"
					}
					_, _ = fmt.Fprintf(w, "%s\t%s\n", id, state)
				}
				return w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&collapse, "collapse", false, "Collapse the nodes instead of expanding them")
	cmd.Flags().BoolVar(&reset, "reset", false, "Clear all stored state for the run first")
	cmd.Flags().BoolVar(&list, "list", false, "Show the stored state for the run")

	return cmd
}
