// Package cli implements planctl, the operator tool for plan maintenance
// and for checking cycle and stage predictions by hand.
package cli

import (
	"context"
	"fmt"

	"alcyxob/stride-planner/internal/app"
	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/config"
	"alcyxob/stride-planner/internal/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const dateLayout = "2006-01-02"

// Execute runs the root command
func Execute() error {
	return NewRootCmd(clock.Real()).Execute()
}

// NewRootCmd builds the command tree. Default dates and token lifetimes are
// taken from clk.
func NewRootCmd(clk clock.Clock) *cobra.Command {
	root := &cobra.Command{
		Use:   "planctl",
		Short: "Maintenance tool for stride planner",
		Long: `planctl inspects cycle phases and training stages and runs
maintenance tasks (archive, complete, sweep) against the configured store.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config-dir", ".", "directory holding config.yaml")
	_ = viper.BindPFlag("config_dir", root.PersistentFlags().Lookup("config-dir"))

	root.AddCommand(newPhaseCmd(clk), newStageCmd(clk), newArchiveCmd(clk), newCompleteCmd(clk), newSweepCmd(clk), newTokenCmd(clk))
	return root
}

// withApp loads configuration, builds the application and hands it to fn.
func withApp(cmd *cobra.Command, clk clock.Clock, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadConfig(viper.GetString("config_dir"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Build(ctx, cfg, log, clk)
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	return fn(ctx, a)
}
