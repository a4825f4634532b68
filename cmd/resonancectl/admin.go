// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tomtom215/resonance/internal/config"
	"github.com/tomtom215/resonance/internal/storage"
)

var errNotMemory = errors.New("snapshots require storage.backend=memory")

func NewMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if cfg.Storage.Backend != storage.BackendPostgres {
				return fmt.Errorf("migrate needs storage.backend=postgres, configured %q", cfg.Storage.Backend)
			}
			if err := storage.RunMigrations(cfg.Storage.Postgres.DSN); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		},
	}
}

func NewSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import a memory backend snapshot",
	}

	save := &cobra.Command{
		Use:   "save <path>",
		Short: "Write the current memory state to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(_ *config.Config, store storage.Backend) error {
				mem, ok := store.(*storage.Memory)
				if !ok {
					return errNotMemory
				}
				meta, err := storage.NewSnapshotFile(args[0]).Save(cmd.Context(), mem.State())
				if err != nil {
					return err
				}
				if a.asJSON {
					return writeJSON(cmd.OutOrStdout(), meta)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved %d tracks, %d users to %s (%d bytes)\n",
					meta.Tracks, meta.Users, args[0], meta.SizeBytes)
				return err
			})
		},
	}

	load := &cobra.Command{
		Use:   "load <path>",
		Short: "Replace the memory state with the snapshot at path",
		Long:  `Replace the memory state with the snapshot at path. The result is written to storage.memory.snapshot_path, which must be set.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(cfg *config.Config, store storage.Backend) error {
				mem, ok := store.(*storage.Memory)
				if !ok {
					return errNotMemory
				}
				if cfg.Storage.Memory.SnapshotPath == "" {
					return errors.New("snapshot load needs storage.memory.snapshot_path to persist the result")
				}
				state, meta, err := storage.NewSnapshotFile(args[0]).Load(cmd.Context())
				if err != nil {
					return err
				}
				mem.Restore(state)
				if a.asJSON {
					return writeJSON(cmd.OutOrStdout(), meta)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "loaded %d tracks, %d users saved %s\n",
					meta.Tracks, meta.Users, meta.SavedAt.Format("2006-01-02 15:04:05"))
				return err
			})
		},
	}

	cmd.AddCommand(save, load)
	return cmd
}

func NewVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "resonancectl %s (%s %s/%s)\n",
				version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
}
