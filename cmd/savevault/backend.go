// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/holomush/savevault/internal/auth"
	"github.com/holomush/savevault/internal/config"
)

// openBackend picks the remote store or the local directory according to cfg.
func openBackend(ctx context.Context, cfg *config.Config, deps *Deps, logger *slog.Logger) (auth.Backend, auth.BackendKind, error) {
	opts := auth.SelectOptions{
		Mode:           cfg.Mode(),
		ConnectTimeout: cfg.ConnectTimeout,
		Logger:         logger,
		Local: func(context.Context) (auth.Backend, error) {
			return deps.LocalOpener(cfg.SavesDir, logger)
		},
	}
	if cfg.DatabaseURL != "" {
		opts.Remote = func(ctx context.Context) (auth.Backend, error) {
			return deps.RemoteOpener(ctx, cfg, logger)
		}
	}
	return auth.SelectBackend(ctx, opts)
}

// newAuthority builds an Authority that registers accounts with the
// configured KDF costs.
func newAuthority(cfg *config.Config, backend auth.Backend, deps *Deps, logger *slog.Logger, recorder auth.Recorder) (*auth.Authority, error) {
	hasher, err := auth.NewArgon2idHasher(cfg.KDF.Params())
	if err != nil {
		return nil, err
	}
	opts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithClock(deps.Now),
	}
	if recorder != nil {
		opts = append(opts, auth.WithRecorder(recorder))
	}
	return auth.NewAuthority(backend, hasher, opts...)
}

// closeBackend releases backend, logging rather than returning failures.
func closeBackend(logger *slog.Logger, backend auth.Backend) {
	if err := backend.Close(); err != nil {
		logger.Warn("error closing backend", "error", err)
	}
}
