package main

import (
	"fmt"
	"os"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/adapters/security"
	"github.com/spf13/cobra"
)

func newDevTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Mint identity tokens for local development",
	}

	keygen := &cobra.Command{
		Use:   "keygen",
		Short: "Print a fresh RSA key pair; set the public half as JWT_PUBLIC_KEY_PEM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := security.NewEphemeralIdentityTokenVerifier("", "")
			if err != nil {
				return err
			}
			private, err := v.PrivateKeyPEM()
			if err != nil {
				return err
			}
			public, err := v.PublicKeyPEM()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), private, public)
			return nil
		},
	}

	var keyFile, subject, email, issuer, audience string
	var ttl time.Duration
	sign := &cobra.Command{
		Use:   "sign",
		Short: "Sign a token for a subject with a private key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(keyFile)
			if err != nil {
				return err
			}
			v, err := security.NewSigningIdentityTokenVerifier(string(raw), issuer, audience)
			if err != nil {
				return err
			}
			token, err := v.Sign(subject, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	sign.Flags().StringVar(&keyFile, "key", "", "PEM private key file")
	sign.Flags().StringVar(&subject, "sub", "", "identity subject")
	sign.Flags().StringVar(&email, "email", "", "email claim")
	sign.Flags().StringVar(&issuer, "issuer", os.Getenv("JWT_ISSUER"), "token issuer")
	sign.Flags().StringVar(&audience, "audience", os.Getenv("JWT_AUDIENCE"), "token audience")
	sign.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = sign.MarkFlagRequired("key")
	_ = sign.MarkFlagRequired("sub")

	cmd.AddCommand(keygen, sign)
	return cmd
}
