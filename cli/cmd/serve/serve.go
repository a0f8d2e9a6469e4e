package serve

import (
	"context"
	"fmt"

	"github.com/minutemate/minutemate/cli/cmd"
	"github.com/minutemate/minutemate/engine/infra/server"
	"github.com/minutemate/minutemate/engine/infra/server/appstate"
	"github.com/minutemate/minutemate/pkg/config"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/minutemate/minutemate/pkg/version"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the MinuteMate HTTP server",
		Long:    "Serve the transcript intake API, the task endpoints and /metrics until interrupted.",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, handleServe, args)
		},
	}
	serveCmd.Flags().String("host", "", "Host to bind (overrides server.host)")
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides server.port)")
	return serveCmd
}

func handleServe(ctx context.Context, _ *cobra.Command, cfg *config.Config, _ []string) error {
	log := logger.FromContext(ctx)
	app, err := cmd.BuildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to release resources", "error", err)
		}
	}()
	state, err := appstate.NewState(app.Orchestrator, version.Get().Version)
	if err != nil {
		return err
	}
	app.RegisterHealthChecks(state)
	var opts []server.Option
	if cfg.Server.RateLimit.Enabled {
		limiter, err := app.RateLimiter(&cfg.Server.RateLimit)
		if err != nil {
			return err
		}
		opts = append(opts, server.WithRateLimiter(limiter))
	}
	srv, err := server.NewServer(ctx, &cfg.Server, state, app.Registry, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	log.Info("Starting MinuteMate server", "version", version.Get().Version, "environment", cfg.Runtime.Environment)
	return srv.Run(ctx)
}
