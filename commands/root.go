// Package commands implements the sensegraph CLI. The subcommands
// drive the ingestion pipeline end to end: fetch platform posts,
// extract semantics, and publish nanopublications.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sensenets/sensegraph/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sensegraph"
)

// Root builds the root command with all subcommands attached.
func Root() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Social post ingestion and semantic annotation pipeline",
		Long: `Sensegraph ingests posts from social platforms, extracts semantic
annotations through an upstream parser, and republishes them as signed
nanopublications.

Posts, mirrors, triples and reference metadata live in NATS JetStream
key-value buckets. When no NATS URL is configured the commands run
against an in-memory store, which is useful for local experiments.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		fetchCmd(&configPath, &logLevel),
		listenCmd(&configPath, &logLevel),
		processCmd(&configPath, &logLevel),
		publishCmd(&configPath, &logLevel),
		statusCmd(&configPath, &logLevel),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	if configPath != "" {
		cfg := config.DefaultConfig()
		fileCfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg.Merge(fileCfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
