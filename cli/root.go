package cli

import (
	"fmt"

	"github.com/minutemate/minutemate/cli/cmd/directory"
	"github.com/minutemate/minutemate/cli/cmd/process"
	"github.com/minutemate/minutemate/cli/cmd/serve"
	"github.com/minutemate/minutemate/pkg/config"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/minutemate/minutemate/pkg/version"
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "minutemate",
		Short:         "Turn meeting transcripts into routed, assigned tickets",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupCommandContext(cmd)
		},
	}
	root.PersistentFlags().String("config", "minutemate.yaml", "Path to the config file")
	root.PersistentFlags().String("env-file", ".env", "Path to the environment file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "Emit logs as JSON")

	root.AddCommand(
		serve.NewServeCommand(),
		process.NewProcessCommand(),
		directory.NewDirectoryCommand(),
	)
	return root
}

// setupCommandContext loads the env file and configuration, initializes the
// logger and stores both in the command context.
func setupCommandContext(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if _, err := loadEnvFile(cmd); err != nil {
		return err
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	sources := []config.Source{config.NewYAMLProvider(configFile)}
	flags := make(map[string]any)
	extractCLIFlags(cmd.Flags(), flags)
	if len(flags) > 0 {
		sources = append(sources, config.NewCLIProvider(flags))
	}
	manager := config.NewManager(config.NewService())
	cfg, err := manager.Load(ctx, sources...)
	if err != nil {
		return err
	}
	logger.SetupLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogJSON, false)
	log := logger.GetDefault()
	ctx = config.ContextWithManager(ctx, manager)
	ctx = logger.ContextWithLogger(ctx, log)
	cmd.SetContext(ctx)
	log.Debug("Configuration loaded", "config_file", configFile, "environment", cfg.Runtime.Environment)
	return nil
}
