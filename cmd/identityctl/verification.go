package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/buddywood/northstarnupes-sub002/internal/app/bootstrap"
	"github.com/buddywood/northstarnupes-sub002/internal/application"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// verificationBatch is the file written by the offline membership check.
type verificationBatch struct {
	Outcomes []application.VerificationOutcome `yaml:"outcomes"`
}

func loadVerificationBatch(r io.Reader) ([]application.VerificationOutcome, error) {
	var batch verificationBatch
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&batch); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("verification batch is empty")
		}
		return nil, fmt.Errorf("parse verification batch: %w", err)
	}
	for i, o := range batch.Outcomes {
		if o.MembershipNumber == "" && o.Email == "" {
			return nil, fmt.Errorf("outcome %d: membership_number or email is required", i+1)
		}
		if o.Status == "" {
			return nil, fmt.Errorf("outcome %d: status is required", i+1)
		}
	}
	return batch.Outcomes, nil
}

func newVerificationCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verification",
		Short: "Record member verification outcomes",
	}

	var file string
	var failFast bool
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Apply a YAML batch of verification outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			outcomes, err := loadVerificationBatch(f)
			if err != nil {
				return err
			}
			return withAdmin(cmd.Context(), opts, func(a *bootstrap.Admin) error {
				applied, failed := 0, 0
				for _, o := range outcomes {
					if _, err := a.Service().RecordVerificationOutcome(cmd.Context(), o); err != nil {
						failed++
						cmd.PrintErrf("skip %s%s: %v\n", o.MembershipNumber, o.Email, err)
						if failFast {
							return err
						}
						continue
					}
					applied++
				}
				cmd.Printf("applied %d, failed %d\n", applied, failed)
				if failed > 0 {
					return fmt.Errorf("%d outcomes were not applied", failed)
				}
				return nil
			})
		},
	}
	importCmd.Flags().StringVarP(&file, "file", "f", "", "YAML batch file")
	importCmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first outcome that cannot be applied")
	_ = importCmd.MarkFlagRequired("file")

	cmd.AddCommand(importCmd)
	return cmd
}
