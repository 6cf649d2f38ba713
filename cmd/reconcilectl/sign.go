package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"payment-reconciler/internal/domains/payment/model"
	"payment-reconciler/internal/domains/payment/signature"
)

// signCmd prints the signature header for a webhook body, for replaying
// deliveries against a local instance.
func signCmd() *cobra.Command {
	var (
		secret string
		file   string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute the webhook signature header for a body",
		Long: `Reads a webhook body from --file or stdin and prints the value
expected in the ` + model.HeaderSignature + ` header.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("WEBHOOK_SECRET")
			}
			if secret == "" {
				return errors.New("webhook secret is required (--secret or WEBHOOK_SECRET)")
			}

			var (
				body []byte
				err  error
			)
			if file != "" {
				body, err = os.ReadFile(file)
			} else {
				body, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), model.MaxWebhookBodyBytes+1))
			}
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			if len(body) > model.MaxWebhookBodyBytes {
				return errors.New("body exceeds the webhook size limit")
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), signature.Compute(secret, body))
			return err
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Shared webhook secret (defaults to $WEBHOOK_SECRET)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the body from this file instead of stdin")

	return cmd
}
