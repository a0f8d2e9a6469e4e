package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/minutemate/minutemate/cli/helpers"
	"github.com/minutemate/minutemate/pkg/config"
	"github.com/spf13/cobra"
)

// HandlerFunc defines the signature for command handlers.
type HandlerFunc func(ctx context.Context, cmd *cobra.Command, cfg *config.Config, args []string) error

// ExecuteCommand runs handler with the loaded configuration and a context
// that is cancelled on SIGINT or SIGTERM.
func ExecuteCommand(cobraCmd *cobra.Command, handler HandlerFunc, args []string) error {
	ctx, stop := signal.NotifyContext(cobraCmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	asJSON := jsonErrors(cobraCmd)
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return HandleCommonErrors(fmt.Errorf("configuration manager not found in context"), asJSON)
	}
	return HandleCommonErrors(handler(ctx, cobraCmd, cfg, args), asJSON)
}

func jsonErrors(cobraCmd *cobra.Command) bool {
	v, err := cobraCmd.Flags().GetBool("log-json")
	return err == nil && v
}

// ValidateRequiredFlags checks that all required flags are present and valid.
func ValidateRequiredFlags(cmd *cobra.Command, required []string) error {
	for _, flag := range required {
		if !cmd.Flags().Changed(flag) {
			return helpers.NewCliError("MISSING_FLAG", fmt.Sprintf("required flag '%s' not specified", flag))
		}
		if value, err := cmd.Flags().GetString(flag); err == nil && value == "" {
			return helpers.NewCliError("EMPTY_FLAG", fmt.Sprintf("required flag '%s' cannot be empty", flag))
		}
	}
	return nil
}

// HandleCommonErrors provides consistent error handling across all commands.
func HandleCommonErrors(err error, asJSON bool) error {
	if err == nil {
		return nil
	}
	if cliErr := categorizeError(err); cliErr != nil {
		helpers.OutputError(cliErr, asJSON)
		return helpers.Reported(cliErr)
	}
	helpers.OutputError(err, asJSON)
	return helpers.Reported(err)
}

// categorizeError converts errors to structured CLI errors
func categorizeError(err error) *helpers.CliError {
	switch {
	case errors.Is(err, context.Canceled):
		return helpers.NewCliError("OPERATION_CANCELED", "Operation was canceled by user")
	case helpers.IsTimeoutError(err):
		return helpers.NewCliError("OPERATION_TIMEOUT", "Operation timed out", err.Error())
	default:
		return nil
	}
}
