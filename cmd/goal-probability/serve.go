package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iwvelando/goal-probability/internal/server"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var serverConfigPath string
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the evaluation and ranking HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serverCfg, err := server.LoadConfig(serverConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load server configuration at %s: %w", serverConfigPath, err)
			}
			if address != "" {
				serverCfg.Address = address
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts, serverCfg.Logging)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.startJanitor(); err != nil {
				return err
			}

			handler := server.NewHandler(a.logger, server.Dependencies{
				Simulator:  a.sim,
				Ranker:     a.ranker,
				Cache:      a.cache,
				Params:     a.params,
				Iterations: a.conf.Simulation.Iterations,
				Seed:       a.conf.Simulation.Seed,
			}, server.Options{
				MaxBodyBytes:      serverCfg.MaxBodyBytes(),
				Version:           version,
				RankRatePerSecond: serverCfg.RankLimit.PerSecond,
				RankBurst:         serverCfg.RankLimit.Burst,
			})

			a.logger.Info("starting server",
				zap.String("op", "main"),
				zap.String("address", serverCfg.Address),
			)
			if err := server.Serve(ctx, a.logger, serverCfg.Address, handler, serverCfg.ShutdownTimeout); err != nil {
				a.logger.Error("server stopped with error",
					zap.String("op", "main"),
					zap.Error(err),
				)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverConfigPath, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	cmd.Flags().StringVar(&address, "address", "", "listen address override")
	return cmd
}
