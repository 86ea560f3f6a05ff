package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagewright/scriptorium/internal/config"
	"github.com/pagewright/scriptorium/internal/home"
	"github.com/pagewright/scriptorium/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Scriptorium server",
	Long: `Start the Scriptorium HTTP server.

The server opens the SQLite database in the home directory, serves the
transcription API and page image assets, and optionally runs a periodic
counter reconciliation sweep.

Examples:
  scriptorium serve                    # Start on default port 8080
  scriptorium serve --port 3000        # Start on custom port
  scriptorium serve --host 0.0.0.0     # Bind to all interfaces`,
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

		// Load configuration with hot-reload support
		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		host := serveHost
		port := servePort
		if c := cfgMgr.Get(); c != nil {
			if !cmd.Flags().Changed("host") && c.Server.Host != "" {
				host = c.Server.Host
			}
			if !cmd.Flags().Changed("port") && c.Server.Port != "" {
				port = c.Server.Port
			}
		}

		// Create server
		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: cfgMgr,
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
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
