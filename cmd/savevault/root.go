// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"io"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/savevault/internal/config"
	"github.com/holomush/savevault/internal/logging"
)

const serviceName = "savevault"

// NewRootCmd creates the root command for the savevault CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil)
}

func newRootCmdWithDeps(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "savevault",
		Short: "savevault - accounts and encrypted game saves",
		Long: `savevault manages player accounts and their encrypted save files.
Saves are sealed with a key derived from the player's password and stored
in PostgreSQL when it is reachable, or in a local directory otherwise.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewPlayCmd(deps))
	cmd.AddCommand(NewLeaderboardCmd(deps))
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewAccountsCmd(deps))
	cmd.AddCommand(NewConfigCmd(deps))

	return cmd
}

// loadConfig resolves and validates the configuration for cmd.
func loadConfig(cmd *cobra.Command, deps *Deps) (*config.Config, error) {
	path, err := cmd.Flags().GetString(config.FlagConfig)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("flag", config.FlagConfig).Wrap(err)
	}
	cfg, err := config.Load(config.LoadOptions{
		Path:   path,
		Flags:  cmd.Flags(),
		Getenv: deps.Getenv,
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg and installs it as the default.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logging.SetDefault(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevelValue(),
		Writer:  w,
	})
}

// setup loads configuration and logging shared by every command.
func setup(cmd *cobra.Command, deps *Deps) (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg, cmd.ErrOrStderr()), nil
}
