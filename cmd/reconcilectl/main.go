// reconcilectl is the operator tool for the payment reconciler.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"payment-reconciler/pkg/logger"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "reconcilectl",
		Short:         "Operator tool for the payment reconciler",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(signCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(historyCmd())

	return rootCmd
}
