package cli

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/dshills/runwatch/pkg/client"
	"github.com/dshills/runwatch/pkg/domain/types"
	"github.com/dshills/runwatch/pkg/expansion"
	"github.com/dshills/runwatch/pkg/runview"
	"github.com/dshills/runwatch/pkg/storage"
	"github.com/dshills/runwatch/pkg/stream"
	"github.com/dshills/runwatch/pkg/validation"
)

// services are the collaborators a command talks to, built from Settings.
type services struct {
	settings Settings
	tokens   *storage.KeyringTokenStore
	client   *client.Client
	store    expansion.Store
}

// openServices builds the REST client and opens the expansion store.
func openServices(settings Settings) (*services, error) {
	timeout, err := settings.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	tokens := storage.NewKeyringTokenStore()
	c, err := client.New(client.Config{
		Server:  settings.Server,
		APIPath: settings.APIPath,
		Timeout: timeout,
		Tokens:  tokens,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	store, err := expansion.NewSQLiteStore(settings.ExpansionDB)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to open expansion store: %w", err)
	}

	return &services{settings: settings, tokens: tokens, client: c, store: store}, nil
}

// deps returns the run view collaborators backed by the expansion store.
func (s *services) deps() runview.Deps {
	return runview.Deps{Expansion: expansion.Lookup(s.store, logger)}
}

// eventSource creates an unconnected WebSocket source for the configured server.
func (s *services) eventSource() (*stream.WSClient, error) {
	wsURL, err := stream.EndpointURL(s.settings.Server, s.settings.WSPath)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{}
	token, err := s.tokens.Token(s.settings.Server)
	if err != nil {
		logger.Warn("token lookup failed, connecting without credentials")
	} else if token != "" {
		headers[client.AuthHeader] = token
	}
	return stream.NewWSClient(stream.WSConfig{URL: wsURL, Headers: headers, Logger: logger})
}

func (s *services) Close() error {
	return multierr.Combine(s.client.Close(), s.store.Close())
}

// parseTarget validates the flow and run arguments.
func parseTarget(flowArg, runArg string) (runview.Target, error) {
	if err := validation.ValidateIdentifier("flow", flowArg); err != nil {
		return runview.Target{}, err
	}
	runID := types.RunID(runArg)
	if err := validation.ValidateRunID(runID); err != nil {
		return runview.Target{}, err
	}
	return runview.Target{FlowID: types.FlowID(flowArg), RunID: runID}, nil
}
