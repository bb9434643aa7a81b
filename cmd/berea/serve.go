package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/config"
	"github.com/berea-study/berea/internal/home"
	"github.com/berea-study/berea/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Berea server",
	Long: `Start the Berea HTTP server.

The server connects to Postgres, runs schema migrations, and serves the
study API. Configuration is hot-reloaded when the config file changes.

The server provides:
  - /health - Basic server health check
  - /ready  - Readiness check (includes database ping)

Examples:
  berea serve                    # Start on default port 8080
  berea serve --port 3000        # Start on custom port
  berea serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		mgr.WatchConfig()

		conf := mgr.Get()
		host := serveHost
		if host == "" {
			host = conf.Server.Host
		}
		port := servePort
		if port == "" {
			port = conf.Server.Port
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: mgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
