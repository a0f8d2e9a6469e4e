package directory

import (
	"bytes"
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/minutemate/minutemate/cli/cmd"
	"github.com/minutemate/minutemate/cli/helpers"
	"github.com/minutemate/minutemate/engine/directory"
	"github.com/minutemate/minutemate/engine/infra/sqlite"
	"github.com/minutemate/minutemate/pkg/config"
	"github.com/minutemate/minutemate/pkg/logger"
	"github.com/spf13/cobra"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// NewDirectoryCommand creates the directory command group
func NewDirectoryCommand() *cobra.Command {
	dirCmd := &cobra.Command{
		Use:   "directory",
		Short: "Manage the owner directory",
	}
	dirCmd.AddCommand(newImportCommand(), newListCommand())
	return dirCmd
}

func newImportCommand() *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import <roster.yaml>",
		Short: "Import owners from a YAML roster",
		Long: `Upsert every owner listed in the roster. With --prune, owners missing
from the roster are removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, handleImport, args)
		},
	}
	importCmd.Flags().Bool("prune", false, "Remove owners not present in the roster")
	return importCmd
}

func newListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List directory owners",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.ExecuteCommand(c, handleList, args)
		},
	}
	listCmd.Flags().StringP("format", "f", "", "Output format (json, table); detected from the terminal when empty")
	return listCmd
}

func withRepo(
	ctx context.Context,
	cfg *config.Config,
	fn func(repo *sqlite.DirectoryRepo) error,
) error {
	store, err := cmd.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.FromContext(ctx).Warn("Failed to close database", "error", err)
		}
	}()
	return fn(sqlite.NewDirectoryRepo(store.DB()))
}

func handleImport(ctx context.Context, c *cobra.Command, cfg *config.Config, args []string) error {
	data, err := helpers.ReadInput(ctx, c.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	entries, err := directory.LoadRoster(bytes.NewReader(data))
	if err != nil {
		return helpers.NewCliError("INVALID_ROSTER", "Roster could not be parsed", err.Error())
	}
	prune, _ := c.Flags().GetBool("prune")
	return withRepo(ctx, cfg, func(repo *sqlite.DirectoryRepo) error {
		keep := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			if err := repo.Upsert(ctx, e); err != nil {
				return fmt.Errorf("importing %s: %w", e.ID, err)
			}
			keep[e.ID] = struct{}{}
		}
		removed := 0
		if prune {
			existing, err := repo.List(ctx)
			if err != nil {
				return err
			}
			for _, e := range existing {
				if _, ok := keep[e.ID]; ok {
					continue
				}
				if err := repo.Delete(ctx, e.ID); err != nil {
					return fmt.Errorf("removing %s: %w", e.ID, err)
				}
				removed++
			}
		}
		logger.FromContext(ctx).Info("Roster imported", "owners", len(entries), "removed", removed)
		fmt.Fprintf(c.OutOrStdout(), "Imported %d owners, removed %d\n", len(entries), removed)
		return nil
	})
}

func handleList(ctx context.Context, c *cobra.Command, cfg *config.Config, _ []string) error {
	explicit, _ := c.Flags().GetString("format")
	format, err := helpers.DetectFormat(explicit, c.OutOrStdout())
	if err != nil {
		return err
	}
	return withRepo(ctx, cfg, func(repo *sqlite.DirectoryRepo) error {
		entries, err := repo.List(ctx)
		if err != nil {
			return err
		}
		if format == helpers.FormatJSON {
			return helpers.WriteJSON(c.OutOrStdout(), entries)
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "NAME", "DEPARTMENT", "EMAIL", "ACCOUNT", "LEAD").
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		for _, e := range entries {
			lead := ""
			if e.Lead {
				lead = "yes"
			}
			t.Row(e.ID, e.Name, e.Department, e.Email, e.AccountID, lead)
		}
		_, err = fmt.Fprintln(c.OutOrStdout(), t.String())
		return err
	})
}
