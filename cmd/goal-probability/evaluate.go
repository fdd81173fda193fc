package main

import (
	"time"

	"github.com/iwvelando/goal-probability/internal/config"
	"github.com/iwvelando/goal-probability/pkg/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newEvaluateCmd(opts *rootOptions) *cobra.Command {
	var iterations int
	var seed int64

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Estimate the success probability of the configured goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, config.LoggingConfig{})
			if err != nil {
				return err
			}
			defer a.Close()

			g, _, err := a.goalAndProfile()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("iterations") {
				iterations = a.conf.Simulation.Iterations
			}
			if !cmd.Flags().Changed("seed") {
				seed = a.conf.Simulation.Seed
			}

			start := time.Now()
			res, err := a.sim.Evaluate(cmd.Context(), g, a.params, iterations, seed)
			if err != nil {
				a.logger.Error("evaluation failed",
					zap.String("op", "main"),
					zap.String("goal", g.ID),
					zap.Error(err),
				)
				return err
			}
			a.logger.Info("evaluation complete",
				zap.String("op", "main"),
				zap.String("goal", g.ID),
				zap.Float64("probability", res.SuccessProbability),
				zap.Duration("duration", time.Since(start)),
			)
			return output.WriteResult(cmd.OutOrStdout(), a.outputFormat, g.ID, res)
		},
	}
	cmd.Flags().IntVar(&iterations, "iterations", 0, "number of trajectories (overrides simulation.iterations)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "base random seed (overrides simulation.seed)")
	return cmd
}
