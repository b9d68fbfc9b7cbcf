// Package main implements the agentmem CLI for storing and retrieving agent memories.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	agentmem "github.com/oceanbase/agentmem-go/pkg/core"
	"github.com/oceanbase/agentmem-go/pkg/logging"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envFile    string
	jsonOutput bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "agentmem",
		Short: "Persistent memory for conversational agents",
		Long: `agentmem records short memories for an agent and retrieves them by
relevance or by day.

Configuration is read from --config (YAML), --env-file, or the environment
(AGENTMEM_*, SQLITE_PATH, POSTGRES_*, OCEANBASE_*, REDIS_URL).`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", ".env file to load")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newStoreCmd(opts))
	rootCmd.AddCommand(newQueryCmd(opts))
	rootCmd.AddCommand(newTimelineCmd(opts))

	return rootCmd
}

// loadConfig picks the configuration source from the persistent flags.
func (o *rootOptions) loadConfig() (*agentmem.Config, error) {
	switch {
	case o.configPath != "":
		return agentmem.LoadConfigFromFile(o.configPath)
	case o.envFile != "":
		return agentmem.LoadConfigFromEnvFile(o.envFile)
	default:
		return agentmem.LoadConfigFromEnv()
	}
}

// newLogger builds the CLI logger from the config and --log-level.
func (o *rootOptions) newLogger(cfg *agentmem.Config) (*zap.Logger, error) {
	logCfg := logging.NewDefaultConfig()
	if cfg.Logging != nil {
		logCfg = cfg.Logging
	}
	if o.logLevel != "" {
		level, err := logging.ParseLevel(o.logLevel)
		if err != nil {
			return nil, err
		}
		logCfg.Level = level
	}
	return logging.NewLogger(logCfg)
}

// withClient opens a client for the duration of fn.
func (o *rootOptions) withClient(ctx context.Context, fn func(*agentmem.Client) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	logger, err := o.newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logging.Sync(logger) }()

	client, err := agentmem.NewClient(ctx, cfg, agentmem.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("failed to close client", zap.Error(cerr))
		}
	}()

	return fn(client)
}
