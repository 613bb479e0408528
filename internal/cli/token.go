package cli

import (
	"fmt"
	"time"

	"alcyxob/stride-planner/internal/api"
	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTokenCmd(clk clock.Clock) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <runner-id>",
		Short: "Issue a bearer token for a runner (local development)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runnerID, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid runner id %q: %w", args[0], err)
			}
			cfg, err := config.LoadConfig(viper.GetString("config_dir"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			token, err := api.IssueToken(cfg.JWT.Secret, runnerID, ttl, clk.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
