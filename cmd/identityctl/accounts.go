package main

import (
	"fmt"

	"github.com/buddywood/northstarnupes-sub002/internal/app/bootstrap"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newAccountsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage login accounts",
	}

	var purge bool
	remove := &cobra.Command{
		Use:   "remove <account-id>",
		Short: "Delete an account, optionally with the profile it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("account id must be a uuid: %w", err)
			}
			return withAdmin(cmd.Context(), opts, func(a *bootstrap.Admin) error {
				res, err := a.Service().RemoveAccount(cmd.Context(), id, purge)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	remove.Flags().BoolVar(&purge, "purge", false, "also delete the owned profile and its identity claims")

	promote := &cobra.Command{
		Use:   "promote-admin <email>",
		Short: "Grant the ADMIN persona to an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd.Context(), opts, func(a *bootstrap.Admin) error {
				res, err := a.Service().PromoteAdmin(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.AddCommand(remove, promote)
	return cmd
}
