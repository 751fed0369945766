// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/holomush/savevault/internal/auth"
	"github.com/holomush/savevault/internal/auth/filestore"
	"github.com/holomush/savevault/internal/auth/postgres"
	"github.com/holomush/savevault/internal/config"
	"github.com/holomush/savevault/internal/observability"
	"github.com/holomush/savevault/internal/store"
)

// Deps contains injectable dependencies for the CLI commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// RemoteOpener connects to the remote store and verifies it is reachable.
	// Default: postgres.Open
	RemoteOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.Backend, error)

	// LocalOpener opens the local save directory.
	// Default: filestore.Open
	LocalOpener func(dir string, logger *slog.Logger) (auth.Backend, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string, logger *slog.Logger) (Migrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// Getenv reads environment variables.
	// Default: os.Getenv
	Getenv func(string) string

	// Now is the clock used for recorded games.
	// Default: time.Now
	Now func() time.Time
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func (d *Deps) withDefaults() *Deps {
	out := &Deps{}
	if d != nil {
		*out = *d
	}
	if out.RemoteOpener == nil {
		out.RemoteOpener = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.Backend, error) {
			return postgres.Open(ctx, cfg.DatabaseURL,
				postgres.WithConnectTimeout(cfg.ConnectTimeout),
				postgres.WithAutoMigrate(cfg.AutoMigrate),
				postgres.WithLogger(logger))
		}
	}
	if out.LocalOpener == nil {
		out.LocalOpener = func(dir string, logger *slog.Logger) (auth.Backend, error) {
			return filestore.Open(dir, filestore.WithLogger(logger))
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string, logger *slog.Logger) (Migrator, error) {
			return store.NewMigrator(databaseURL, logger)
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker, logger)
		}
	}
	if out.Getenv == nil {
		out.Getenv = os.Getenv
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return out
}
