package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/zipscope/zipscope/internal/core/config"
	"github.com/zipscope/zipscope/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending task history migrations",
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE:  runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

// resolveDBURL prefers --db-url over the configured database.url.
func resolveDBURL() (string, error) {
	if dbURL != "" {
		return dbURL, nil
	}
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return "", fmt.Errorf("--db-url or database.url required")
	}
	return cfg.Database.URL, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	url, err := resolveDBURL()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	database, err := db.Open(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := db.MigrateUp(ctx, database); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	url, err := resolveDBURL()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	database, err := db.Open(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Migration", "Applied", "Applied At", "Duration (ms)"})
	for _, st := range statuses {
		appliedAt := "-"
		if st.AppliedAt != nil {
			appliedAt = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		t.AppendRow(table.Row{st.ID, st.Applied, appliedAt, st.ExecutionMs})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}
