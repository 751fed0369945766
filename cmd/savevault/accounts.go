// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/savevault/internal/auth"
)

// NewAccountsCmd creates the accounts subcommand.
func NewAccountsCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Administer stored accounts",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Print the number of stored accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, deps, func(cmd *cobra.Command, backend auth.Backend) error {
				n, err := backend.CountProfiles(cmd.Context())
				if err != nil {
					return err
				}
				cmd.Println(n)
				return nil
			})
		},
	})

	var yes bool
	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete an account and its save",
		Long:  `Delete an account and its save. The save cannot be recovered.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").
					With("username", username).
					Hint("pass --yes to delete the account").
					Errorf("refusing to delete %q without confirmation", username)
			}
			return withBackend(cmd, deps, func(cmd *cobra.Command, backend auth.Backend) error {
				if err := backend.DeleteAccount(cmd.Context(), username); err != nil {
					return err
				}
				cmd.Printf("Deleted account %q\n", username)
				return nil
			})
		},
	}
	del.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	cmd.AddCommand(del)

	return cmd
}

func withBackend(cmd *cobra.Command, deps *Deps, fn func(*cobra.Command, auth.Backend) error) error {
	cfg, logger, err := setup(cmd, deps)
	if err != nil {
		return err
	}
	backend, _, err := openBackend(cmd.Context(), cfg, deps, logger)
	if err != nil {
		return err
	}
	defer closeBackend(logger, backend)
	return fn(cmd, backend)
}
