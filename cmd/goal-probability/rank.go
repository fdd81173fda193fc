package main

import (
	"github.com/iwvelando/goal-probability/internal/config"
	"github.com/iwvelando/goal-probability/pkg/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRankCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Rank adjustments that improve the configured goal's probability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, config.LoggingConfig{})
			if err != nil {
				return err
			}
			defer a.Close()

			g, profile, err := a.goalAndProfile()
			if err != nil {
				return err
			}
			res, err := a.ranker.Run(cmd.Context(), g, profile, a.params, nil)
			if err != nil {
				a.logger.Error("ranking failed",
					zap.String("op", "main"),
					zap.String("goal", g.ID),
					zap.Error(err),
				)
				return err
			}
			return output.WriteRecommendations(cmd.OutOrStdout(), a.outputFormat, res)
		},
	}
}
