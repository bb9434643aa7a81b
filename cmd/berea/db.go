package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/config"
	"github.com/berea-study/berea/internal/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance commands",
	Long: `Database maintenance commands.

These commands connect to Postgres directly using the database settings
from the config file and do not require a running server.

Examples:
  berea db migrate   # Create or update the schema
  berea db ping      # Verify database connectivity`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations.

Creates the searches, generation_status, and llm_calls tables if they do
not exist and seeds the generation status row. Safe to run repeatedly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		conf := mgr.Get()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		st, err := store.Open(ctx, conf.Database.DSN(), logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer st.Close()

		if err := store.Migrate(ctx, st, conf.Generation.DefaultTarget); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		fmt.Println("Database migrated")
		return nil
	},
}

var dbPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Verify database connectivity",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		conf := mgr.Get()

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))

		st, err := store.Open(ctx, conf.Database.DSN(), logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer st.Close()

		if err := st.Ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}

		fmt.Printf("Database OK (%s:%s/%s)\n", conf.Database.Host, conf.Database.Port, conf.Database.Name)
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbPingCmd)
	rootCmd.AddCommand(dbCmd)
}
