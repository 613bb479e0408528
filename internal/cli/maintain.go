package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"alcyxob/stride-planner/internal/app"
	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/domain"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newArchiveCmd(clk clock.Clock) *cobra.Command {
	return planTransitionCmd(clk, "archive", "Archive a plan on behalf of its runner",
		func(ctx context.Context, a *app.App, runnerID, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
			return a.Services.Lifecycle.ArchivePlan(ctx, runnerID, planID)
		})
}

func newCompleteCmd(clk clock.Clock) *cobra.Command {
	return planTransitionCmd(clk, "complete", "Mark an active plan completed",
		func(ctx context.Context, a *app.App, runnerID, planID primitive.ObjectID) (*domain.TrainingPlan, error) {
			return a.Services.Lifecycle.CompletePlan(ctx, runnerID, planID)
		})
}

type planTransition func(ctx context.Context, a *app.App, runnerID, planID primitive.ObjectID) (*domain.TrainingPlan, error)

func planTransitionCmd(clk clock.Clock, use, short string, fn planTransition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <plan-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planID, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid plan id %q: %w", args[0], err)
			}
			return withApp(cmd, clk, func(ctx context.Context, a *app.App) error {
				plan, err := a.Repos.Plans.GetByID(ctx, planID)
				if err != nil {
					return fmt.Errorf("load plan: %w", err)
				}
				updated, err := fn(ctx, a, plan.RunnerID, planID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "plan %s is now %s\n", updated.ID.Hex(), updated.Status)
				return nil
			})
		},
	}
}

func newSweepCmd(clk clock.Clock) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reconciliation pass",
		Long: `Completes active plans past their end date and settles dispatched
recalculation jobs that failed or went stale.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, clk, func(ctx context.Context, a *app.App) error {
				report, err := a.Services.Sweeper.Run(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return json.NewEncoder(out).Encode(report)
				}
				fmt.Fprintf(out, "plans completed: %d\njobs failed:     %d\njobs stale:      %d\njobs unreported: %d\n",
					report.PlansCompleted, report.JobsFailed, report.JobsStale, report.JobsUnreported)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
