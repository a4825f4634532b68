// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/resonance/internal/config"
	"github.com/tomtom215/resonance/internal/logging"
	"github.com/tomtom215/resonance/internal/recommend"
	"github.com/tomtom215/resonance/internal/storage"
)

// app carries the persistent flags shared by every subcommand.
type app struct {
	configPath string
	asJSON     bool
	logLevel   string
}

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "resonancectl",
		Short:         "Operate a Resonance recommendation store",
		Long:          `Recompute, inspect and seed recommendations directly against the store configured for the server.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			lc := logging.DefaultConfig()
			lc.Level = a.logLevel
			lc.Format = logging.FormatConsole
			lc.Service = "resonancectl"
			lc.Version = version
			if err := logging.Init(lc); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (default: search CONFIG_PATH and standard locations)")
	flags.BoolVar(&a.asJSON, "json", false, "Output in JSON format")
	flags.StringVar(&a.logLevel, "log-level", "warn", "Log level written to stderr")

	rootCmd.AddCommand(
		NewRecomputeCmd(a),
		NewSimilarCmd(a),
		NewRecommendationsCmd(a),
		NewSeedCmd(a),
		NewMigrateCmd(a),
		NewSnapshotCmd(a),
		NewVersionCmd(version),
	)
	return rootCmd
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.LoadFile(a.configPath)
	}
	return config.LoadWithKoanf()
}

// withStore opens the configured backend, runs fn and closes the backend.
// The memory backend writes its snapshot on close, so changes made by fn
// persist between invocations when a snapshot path is configured.
func (a *app) withStore(ctx context.Context, fn func(*config.Config, storage.Backend) error) (err error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.Storage.Backend == storage.BackendMemory && cfg.Storage.Memory.SnapshotPath == "" {
		fmt.Fprintln(os.Stderr, "warning: memory backend without snapshot_path; changes are discarded on exit")
	}

	store, err := storage.Open(ctx, cfg.Storage.Options(), logging.WithComponent("storage"))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close storage: %w", closeErr)
		}
	}()

	return fn(cfg, store)
}

// withEngine is withStore plus a recommendation engine over the store.
func (a *app) withEngine(ctx context.Context, fn func(*recommend.Engine) error) error {
	return a.withStore(ctx, func(cfg *config.Config, store storage.Backend) error {
		engine, err := recommend.NewEngine(cfg.Recommend.EngineConfig(), recommend.StoresFrom(store), logging.WithComponent("recommend"))
		if err != nil {
			return fmt.Errorf("create recommendation engine: %w", err)
		}
		return fn(engine)
	})
}
