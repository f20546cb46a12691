package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/runwatch/pkg/storage"
)

const maxCredentialSize = 1 << 20 // 1MB limit for all credential inputs

// isOnlyWhitespace checks if a byte slice contains only Unicode whitespace characters
// without allocating strings. Returns true if empty or whitespace-only.
func isOnlyWhitespace(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			// Invalid UTF-8 is treated as non-whitespace
			return false
		}
		if !unicode.IsSpace(r) {
			return false
		}
		i += size
	}
	return true
}

// NewCredentialCommand creates the credential management command
func NewCredentialCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage flow server API tokens",
		Long: `Manage the API tokens sent to flow servers in the X-Floe-Auth header.
Tokens are stored in your system's native credential store (Keychain on macOS,
Credential Manager on Windows, Secret Service on Linux) and never in plain text files.`,
	}

	cmd.AddCommand(newCredentialSetCommand())
	cmd.AddCommand(newCredentialDeleteCommand())
	cmd.AddCommand(newCredentialListCommand())

	return cmd
}

// serverArg returns the server named on the command line or the configured one.
func serverArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	settings, err := LoadSettings()
	if err != nil {
		return "", err
	}
	return settings.Server, nil
}

func newCredentialSetCommand() *cobra.Command {
	var useStdin bool

	cmd := &cobra.Command{
		Use:   "set [server-url]",
		Short: "Store the API token for a server",
		Long: `Store the API token for a flow server. The server defaults to the one in config.yaml.

Examples:
  # Prompt for the token (input hidden)
  runwatch credential set http://flow.example.com:8080

  # Read the token from stdin (recommended for automation/CI/CD)
  printf '%s' "$FLOE_TOKEN" | runwatch credential set --stdin

Security:
  - Interactive input is never echoed
  - --stdin reads until EOF (max 1MB) and strips the trailing newline
  - Whitespace-only tokens are rejected`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := serverArg(args)
			if err != nil {
				return err
			}

			var input []byte
			// Zero the input buffer on all exit paths
			defer func() {
				for i := range input {
					input[i] = 0
				}
			}()

			if useStdin {
				input, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxCredentialSize+1))
				if err != nil {
					return fmt.Errorf("failed to read from stdin: %w", err)
				}
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Enter token for '%s': ", server)
				input, err = term.ReadPassword(int(os.Stdin.Fd()))
				_, _ = fmt.Fprintln(cmd.OutOrStdout()) // New line after hidden input
				if err != nil {
					return fmt.Errorf("failed to read token: %w", err)
				}
			}

			if len(input) > maxCredentialSize {
				return fmt.Errorf("token exceeds maximum size of %d bytes", maxCredentialSize)
			}
			trimmed := bytes.TrimRight(input, "\r\n")
			if len(trimmed) == 0 {
				return fmt.Errorf("token cannot be empty")
			}
			if isOnlyWhitespace(trimmed) {
				return fmt.Errorf("token cannot contain only whitespace characters")
			}

			if err := storage.NewKeyringTokenStore().Set(server, string(trimmed)); err != nil {
				return fmt.Errorf("failed to store token: %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Token stored for '%s'\n", server)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read the token from stdin (recommended for automation/CI/CD)")

	return cmd
}

func newCredentialDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [server-url]",
		Short: "Remove the API token for a server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := serverArg(args)
			if err != nil {
				return err
			}
			if err := storage.NewKeyringTokenStore().Delete(server); err != nil {
				if errors.Is(err, storage.ErrNoToken) {
					return fmt.Errorf("no token stored for '%s'", server)
				}
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Token removed for '%s'\n", server)
			return nil
		},
	}
}

func newCredentialListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List servers with a stored token",
		Long: `List the servers that have a stored API token.
Shows only server URLs, never the tokens themselves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			servers, err := storage.NewKeyringTokenStore().List()
			if err != nil {
				return fmt.Errorf("failed to list tokens: %w", err)
			}
			if len(servers) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tokens stored.")
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nAdd one with: runwatch credential set <server-url>")
				return nil
			}
			for _, s := range servers {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}
