// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/savevault/internal/auth"
	"github.com/holomush/savevault/internal/config"
	"github.com/holomush/savevault/internal/progress"
)

const (
	defaultLeaderboardLimit = 10
	shutdownTimeout         = 5 * time.Second
)

// NewPlayCmd creates the play subcommand.
func NewPlayCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Log in or register, then record games",
		Long: `Log in to an existing account or register a new one, then record
games at the prompt. Progress is encrypted with your password before it is
stored.

Commands at the prompt:
  score N   record a finished game with score N
  stats     show your progress
  save      store your progress now
  top       show the leaderboard
  quit      save and exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlay(cmd, deps)
		},
	}
}

func runPlay(cmd *cobra.Command, deps *Deps) error {
	cfg, logger, err := setup(cmd, deps)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var ready atomic.Bool
	var recorder auth.Recorder
	var obs ObservabilityServer
	if cfg.MetricsAddr != "" {
		obs, err = startObservability(cfg, deps, logger, ready.Load)
		if err != nil {
			return err
		}
		defer stopObservability(logger, obs)
		recorder = obs.Metrics()
	}

	backend, kind, err := openBackend(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer closeBackend(logger, backend)
	if obs != nil {
		obs.Metrics().SetBackend(string(kind))
	}
	ready.Store(true)

	authority, err := newAuthority(cfg, backend, deps, logger, recorder)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if kind == auth.BackendLocal {
		fmt.Fprintf(out, "Playing offline. Saves are kept in %s\n", cfg.SavesDir)
	}

	prompter := newTermPrompter(cmd.InOrStdin(), out)
	sess, prog, err := authority.Authenticate(ctx, prompter)
	if err != nil {
		if errors.Is(err, auth.ErrAbandoned) {
			fmt.Fprintln(out, "Goodbye.")
			return nil
		}
		if errors.Is(err, auth.ErrLockedOut) {
			fmt.Fprintln(out, "Too many failed attempts.")
		}
		return err
	}
	defer sess.Close()

	g := &game{
		authority: authority,
		session:   sess,
		progress:  prog,
		prompter:  prompter,
		out:       out,
		now:       deps.Now,
		logger:    logger,
	}
	return g.run(ctx)
}

func startObservability(cfg *config.Config, deps *Deps, logger *slog.Logger, ready func() bool) (ObservabilityServer, error) {
	obs := deps.ObservabilityServerFactory(cfg.MetricsAddr, ready, logger)
	if _, err := obs.Start(); err != nil {
		return nil, oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.MetricsAddr).Wrap(err)
	}
	return obs, nil
}

func stopObservability(logger *slog.Logger, obs ObservabilityServer) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obs.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// game is the post-login command loop.
type game struct {
	authority *auth.Authority
	session   *auth.Session
	progress  progress.Progress
	prompter  *termPrompter
	out       io.Writer
	now       func() time.Time
	logger    *slog.Logger
}

func (g *game) run(ctx context.Context) error {
	for {
		fmt.Fprint(g.out, "> ")
		line, err := g.prompter.readLine()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(g.out)
			return g.save(ctx)
		}
		if err != nil {
			return oops.Code("TERMINAL_READ_FAILED").Wrap(err)
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "score":
			g.score(fields[1:])
		case "stats":
			g.stats()
		case "save":
			if err := g.save(ctx); err != nil {
				return err
			}
			fmt.Fprintln(g.out, "Saved.")
		case "top":
			if err := printLeaderboard(ctx, g.out, g.authority, defaultLeaderboardLimit); err != nil {
				return err
			}
		case "quit", "exit":
			if err := g.save(ctx); err != nil {
				return err
			}
			fmt.Fprintln(g.out, "Saved. Goodbye.")
			return nil
		case "help":
			fmt.Fprintln(g.out, "Commands: score N, stats, save, top, quit")
		default:
			fmt.Fprintf(g.out, "Unknown command %q. Type help for a list.\n", fields[0])
		}
	}
}

func (g *game) score(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(g.out, "Usage: score N")
		return
	}
	n, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || n < 0 {
		fmt.Fprintf(g.out, "Score must be a non-negative whole number, got %q.\n", args[0])
		return
	}
	g.progress.RecordGame(n, g.now())
	fmt.Fprintf(g.out, "Recorded %d. Best score: %d\n", n, g.progress.HighScore)
}

func (g *game) stats() {
	fmt.Fprintf(g.out, "Player: %s\n", g.progress.Name)
	fmt.Fprintf(g.out, "Best score: %d\n", g.progress.HighScore)
	fmt.Fprintf(g.out, "Games played: %d\n", g.progress.TotalSessions)
	fmt.Fprintf(g.out, "Last played: %s\n", g.progress.LastPlayed.Local().Format(time.RFC1123))
}

func (g *game) save(ctx context.Context) error {
	if err := g.authority.SaveProgress(ctx, g.session, g.progress); err != nil {
		return err
	}
	g.logger.Debug("progress saved", "username", g.session.Username)
	return nil
}
