package process

import (
	"context"

	"github.com/minutemate/minutemate/cli/cmd"
	"github.com/minutemate/minutemate/cli/helpers"
	"github.com/minutemate/minutemate/engine/meeting"
	"github.com/minutemate/minutemate/pkg/config"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/spf13/cobra"
)

// NewProcessCommand creates the process command
func NewProcessCommand() *cobra.Command {
	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Run one transcript through the pipeline and print the result",
		Long: `Extract action items from a transcript file, file tickets, notify owners
and print the run result as JSON. Use --file - to read the transcript from stdin.`,
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, handleProcess, args)
		},
	}
	processCmd.Flags().String("meeting-id", "", "Meeting identifier")
	processCmd.Flags().String("file", "", "Transcript file path, or - for stdin")
	processCmd.Flags().String("title", "", "Meeting title")
	processCmd.Flags().String("platform", string(meeting.PlatformGoogleMeet), "Meeting platform (google-meet, zoom, teams)")
	processCmd.Flags().String("manager-email", "", "Manager receiving the follow-up digest")
	return processCmd
}

func handleProcess(ctx context.Context, c *cobra.Command, cfg *config.Config, _ []string) error {
	if err := cmd.ValidateRequiredFlags(c, []string{"meeting-id", "file"}); err != nil {
		return err
	}
	file, _ := c.Flags().GetString("file")
	transcript, err := helpers.ReadInput(ctx, c.InOrStdin(), file)
	if err != nil {
		return err
	}
	in := meeting.Input{Transcript: string(transcript)}
	in.MeetingID, _ = c.Flags().GetString("meeting-id")
	in.Title, _ = c.Flags().GetString("title")
	in.Platform, _ = c.Flags().GetString("platform")
	in.ManagerEmail, _ = c.Flags().GetString("manager-email")
	sub, err := meeting.NewSubmission(in)
	if err != nil {
		return helpers.NewCliError("INVALID_SUBMISSION", "Submission rejected", err.Error())
	}

	app, err := cmd.BuildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			logger.FromContext(ctx).Warn("Failed to release resources", "error", err)
		}
	}()

	res := app.Orchestrator.Process(ctx, sub)
	if err := helpers.WriteJSON(c.OutOrStdout(), res); err != nil {
		return err
	}
	if res.Failed() {
		return helpers.NewCliError("EXTRACTION_FAILURE", "No tasks could be extracted from the transcript")
	}
	return nil
}
