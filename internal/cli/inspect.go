package cli

import (
	"fmt"
	"time"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/domain"
	"alcyxob/stride-planner/internal/planning"

	"github.com/spf13/cobra"
)

func newPhaseCmd(clk clock.Clock) *cobra.Command {
	var (
		anchor     string
		length     int
		date       string
		regularity string
	)
	cmd := &cobra.Command{
		Use:   "phase",
		Short: "Predict the cycle phase on a date",
		Example: `  planctl phase --anchor 2026-01-01 --length 28 --date 2026-02-10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := time.Parse(dateLayout, anchor)
			if err != nil {
				return fmt.Errorf("invalid --anchor: %w", err)
			}
			d, err := parseDate(date, clk)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			res := planning.CyclePhaseAt(d, &a, &length, domain.CycleRegularity(regularity))
			out := cmd.OutOrStdout()
			if !res.Known {
				fmt.Fprintf(out, "%s: phase unknown\n", d.Format(dateLayout))
				return nil
			}
			fmt.Fprintf(out, "%s: %s, day %d of %d\n", d.Format(dateLayout), res.Phase, res.DayInCycle, res.CycleLength)
			if res.MenstruationDay > 0 {
				fmt.Fprintf(out, "menstruation day %d\n", res.MenstruationDay)
			}
			fmt.Fprintf(out, "next period starts %s\n", planning.NextPeriodStart(d, a, length).Format(dateLayout))
			return nil
		},
	}
	cmd.Flags().StringVar(&anchor, "anchor", "", "first day of a known period (YYYY-MM-DD)")
	cmd.Flags().IntVar(&length, "length", 28, "average cycle length in days")
	cmd.Flags().StringVar(&date, "date", "", "date to predict, defaults to today (YYYY-MM-DD)")
	cmd.Flags().StringVar(&regularity, "regularity", string(domain.RegularityRegular), "regular, irregular or do_not_track")
	_ = cmd.MarkFlagRequired("anchor")
	return cmd
}

func newStageCmd(clk clock.Clock) *cobra.Command {
	var start, end, date string
	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Show the training stage of a date within a plan window",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := time.Parse(dateLayout, start)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			e, err := time.Parse(dateLayout, end)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			d, err := parseDate(date, clk)
			if err != nil {
				return fmt.Errorf("invalid --date: %w", err)
			}
			out := cmd.OutOrStdout()
			progress, ok := planning.Progress(d, s, e)
			if !ok {
				fmt.Fprintf(out, "%s: outside the plan window\n", d.Format(dateLayout))
				return nil
			}
			fmt.Fprintf(out, "%s: %s (%.1f%% through)\n", d.Format(dateLayout), planning.StageAt(d, s, e), progress*100)
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "plan start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "plan end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&date, "date", "", "date to classify, defaults to today (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func parseDate(s string, clk clock.Clock) (time.Time, error) {
	if s == "" {
		return planning.Day(clk.Now()), nil
	}
	return time.Parse(dateLayout, s)
}
