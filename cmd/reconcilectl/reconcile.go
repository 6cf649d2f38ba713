package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"payment-reconciler/pkg/container"
)

// =====================================================
// COMMANDS THAT NEED THE FULL CONTAINER
// =====================================================

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [merchant-order-id]",
		Short: "Query the gateway's live status for one order and apply it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *container.Container) error {
				resp, err := c.ReconcileService.ReconcileOrder(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, resp)
			})
		},
	}
}

func sweepCmd() *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile orders left PENDING longer than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *container.Container) error {
				if olderThan <= 0 {
					olderThan = c.Config.Jobs.StalePendingAge
				}
				if limit <= 0 {
					limit = c.Config.Jobs.StaleSweepBatch
				}
				result, err := c.ReconcileService.ReconcileStalePending(cmd.Context(), olderThan, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Minimum PENDING age (defaults to JOB_STALE_PENDING_AGE)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum orders to check (defaults to JOB_STALE_SWEEP_BATCH)")

	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [merchant-order-id]",
		Short: "Show audit log entries for one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(c *container.Container) error {
				logs, err := c.ReconcileService.WebhookHistory(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				return printJSON(cmd, logs)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries")

	return cmd
}

func withContainer(fn func(c *container.Container) error) error {
	c, err := container.NewContainer()
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer c.Cleanup()
	return fn(c)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
