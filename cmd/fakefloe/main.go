package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dshills/runwatch/internal/testutil/floeserver"
)

// main runs the fake flow server standalone, for trying runwatch by hand.
//
// Usage: fakefloe [script.yaml]
//
// The listen address comes from FAKEFLOE_ADDR (default 127.0.0.1:8080); the rest
// of the configuration from the FAKEFLOE_* variables read by floeserver.LoadConfig.
// With a script, its payload is served and its frames are replayed once the
// first client connects.
func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger, os.Args[1:]); err != nil {
		logger.Fatal("fake server failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: fakefloe [script.yaml]")
	}

	config := floeserver.LoadConfig()
	server, err := floeserver.NewServer(config, logger)
	if err != nil {
		return err
	}

	var script *floeserver.Script
	if len(args) == 1 {
		if script, err = floeserver.LoadScript(args[0]); err != nil {
			return err
		}
		if script.Snapshot != nil {
			if err := server.SetRun(script.Flow, script.Run, script.Snapshot); err != nil {
				return err
			}
		}
	}

	addr := os.Getenv("FAKEFLOE_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if script != nil {
		go func() {
			if err := server.WaitForSubscribers(ctx, 1); err != nil {
				return
			}
			if err := server.Play(ctx, script); err != nil && ctx.Err() == nil {
				logger.Error("script replay failed", zap.Error(err))
				return
			}
			logger.Info("script finished", zap.Int("frames", len(script.Frames)))
		}()
	}

	return server.ListenAndServe(ctx, addr, nil)
}
