package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dshills/runwatch/pkg/runview"
	"github.com/dshills/runwatch/pkg/watch"
)

// clearScreen moves the cursor home and clears the terminal.
const clearScreen = "\033[H\033[2J"

type watchOptions struct {
	jsonOut bool
	noColor bool
	once    bool
	until   string
}

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <flow-id> <run-id>",
		Short: "Follow a run as it executes",
		Long: `Fetch a run from the flow server and redraw it every time the server reports
progress on it. Events for other runs are ignored.

Examples:
  # Follow run h1-7 of the build flow
  runwatch watch build h1-7

  # Stream JSON snapshots and stop when the run ends
  runwatch watch build h1-7 --json --until 'Ended'

  # Stop once the approval gate is waiting for input
  runwatch watch build h1-7 --until 'NodeStatus["approve"] == "waiting"'

  # Print the current state and exit
  runwatch watch build h1-7 --once`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}

			var until *watch.Condition
			if opts.until != "" {
				if until, err = watch.CompileCondition(opts.until); err != nil {
					return err
				}
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cmd.OutOrStdout(), svc, target, until, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Write one JSON snapshot per line instead of text")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&opts.once, "once", false, "Fetch the run once without following the event stream")
	cmd.Flags().StringVar(&opts.until, "until", "", "Stop when this expression is true for the run (e.g. 'Ended')")

	return cmd
}

func runWatch(ctx context.Context, out io.Writer, svc *services, target runview.Target, until *watch.Condition, opts watchOptions) error {
	notifier := watch.NewNotifier(0)
	_, frames := notifier.Subscribe()

	config := watch.Config{
		Target:   target,
		Fetcher:  svc.client,
		Deps:     svc.deps(),
		Notifier: notifier,
		Until:    until,
		Logger:   logger,
	}
	if !opts.once {
		src, err := svc.eventSource()
		if err != nil {
			return err
		}
		config.Source = src
	}

	session, err := watch.NewSession(config)
	if err != nil {
		return err
	}

	redrawInPlace := !opts.jsonOut && isTerminal(out)
	noColor := opts.noColor || !isTerminal(out)

	var (
		wg        sync.WaitGroup
		renderErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for f := range frames {
			if renderErr != nil {
				continue
			}
			if opts.jsonOut {
				renderErr = renderJSON(out, f.State)
				continue
			}
			if redrawInPlace {
				_, _ = io.WriteString(out, clearScreen)
			}
			renderErr = renderText(out, f.State, noColor)
		}
	}()

	runErr := session.Run(ctx)
	notifier.Close()
	wg.Wait()

	if dropped := notifier.Dropped(); dropped > 0 {
		logger.Debug("frames skipped for slow output", zap.Uint64("dropped", dropped))
	}
	if renderErr != nil {
		return fmt.Errorf("failed to write output: %w", renderErr)
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, context.Canceled):
		// Interrupted by the user.
		return nil
	case errors.Is(runErr, watch.ErrStreamEnded):
		if last := notifier.Last(); last != nil && last.Summary.Ended {
			return nil
		}
		return fmt.Errorf("server closed the event stream before the run ended")
	default:
		return runErr
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
