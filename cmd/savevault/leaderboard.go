// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/savevault/internal/auth"
)

// NewLeaderboardCmd creates the leaderboard subcommand.
func NewLeaderboardCmd(deps *Deps) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the highest scores",
		Long: `Show the highest scores across all accounts. Scores come from the
plaintext hint stored next to each save, so no password is needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return oops.Code("INVALID_LIMIT").With("limit", limit).Errorf("limit must be positive")
			}
			cfg, logger, err := setup(cmd, deps)
			if err != nil {
				return err
			}
			backend, _, err := openBackend(cmd.Context(), cfg, deps, logger)
			if err != nil {
				return err
			}
			defer closeBackend(logger, backend)

			authority, err := newAuthority(cfg, backend, deps, logger, nil)
			if err != nil {
				return err
			}
			return printLeaderboard(cmd.Context(), cmd.OutOrStdout(), authority, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultLeaderboardLimit, "number of entries to show")
	return cmd
}

func printLeaderboard(ctx context.Context, out io.Writer, authority *auth.Authority, limit int) error {
	entries, err := authority.Leaderboard(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No scores yet.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tSCORE\tLAST PLAYED")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", i+1, e.Name, e.Score, e.LastPlayed.UTC().Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}
