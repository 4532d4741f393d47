package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/buddywood/northstarnupes-sub002/internal/app/bootstrap"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "identityctl",
		Short:         "Operator tooling for the identity service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultPath := os.Getenv("CONFIG_PATH")
	if defaultPath == "" {
		defaultPath = "configs/default.yaml"
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultPath, "path to the service config file")

	cmd.AddCommand(
		newAccountsCommand(opts),
		newVerificationCommand(opts),
		newMigrateCommand(opts),
		newDevTokenCommand(),
	)
	return cmd
}

// withAdmin opens the stores for the duration of fn.
func withAdmin(ctx context.Context, opts *rootOptions, fn func(*bootstrap.Admin) error) error {
	admin, err := bootstrap.NewAdmin(ctx, opts.configPath)
	if err != nil {
		return err
	}
	defer admin.Close()
	return fn(admin)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdmin(cmd.Context(), opts, func(a *bootstrap.Admin) error {
				if err := a.Migrate(cmd.Context()); err != nil {
					return err
				}
				cmd.Println("migrations applied")
				return nil
			})
		},
	}
}
