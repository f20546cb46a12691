package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	// Version is the current version of runwatch
	Version = "1.0.0"

	// ConfigDirEnv overrides the configuration directory.
	ConfigDirEnv = "RUNWATCH_CONFIG_DIR"
)

// Config holds the global configuration for the runwatch CLI
type Config struct {
	ConfigDir string
	Debug     bool
	Server    string
}

// GlobalConfig is the shared configuration instance
var GlobalConfig = &Config{}

// logger is built once per invocation in PersistentPreRunE.
var logger = zap.NewNop()

// NewRootCommand creates the root cobra command for runwatch
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runwatch",
		Short: "runwatch - follow a flow run from the terminal",
		Long: `runwatch shows the live state of one run of a flow: it fetches the run from the
flow server, follows the server's event stream and redraws the task graph as nodes
start, log output, wait for data and finish.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			l, err := newLogger(GlobalConfig.Debug)
			if err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	// Persistent flags (available to all subcommands)
	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.runwatch)")
	cmd.PersistentFlags().StringVar(&GlobalConfig.Server, "server", "", "Flow server base URL (overrides config)")

	cmd.AddCommand(NewWatchCommand())
	cmd.AddCommand(NewPushCommand())
	cmd.AddCommand(NewExpandCommand())
	cmd.AddCommand(NewCredentialCommand())

	return cmd
}

// newLogger builds the process logger. Debug switches to a human-readable
// development encoder at debug level; otherwise only warnings reach stderr.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// initConfig initializes the configuration directory and default config file
func initConfig() error {
	// Environment variable always takes priority (for testing)
	if envDir := os.Getenv(ConfigDirEnv); envDir != "" {
		GlobalConfig.ConfigDir = envDir
	} else if GlobalConfig.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		GlobalConfig.ConfigDir = filepath.Join(homeDir, ".runwatch")
	}

	if err := os.MkdirAll(GlobalConfig.ConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := GetConfigPath()
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		data, err := yaml.Marshal(DefaultSettings())
		if err != nil {
			return fmt.Errorf("failed to marshal default config: %w", err)
		}
		if err := os.WriteFile(configFile, data, 0644); err != nil {
			return fmt.Errorf("failed to write default config: %w", err)
		}
	}

	return nil
}

// GetConfigDir returns the configuration directory path
// Priority order: 1) RUNWATCH_CONFIG_DIR env var, 2) GlobalConfig.ConfigDir, 3) ~/.runwatch
func GetConfigDir() string {
	if envDir := os.Getenv(ConfigDirEnv); envDir != "" {
		return envDir
	}
	if GlobalConfig.ConfigDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ".runwatch"
		}
		return filepath.Join(homeDir, ".runwatch")
	}
	return GlobalConfig.ConfigDir
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
