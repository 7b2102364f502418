package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the configured pipelines on their cron schedules",
		Long: `schedule starts every job under schedule.jobs and serves /healthz, /readyz,
/metrics and the job routes until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			appInstance.Logger().Info("schedule mode starting")
			if err := appInstance.Schedule(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("schedule: %w", err)
			}
			appInstance.Logger().Info("schedule mode stopped")
			return nil
		},
	}
}
