package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/log"
)

var (
	configPath string
	logLevel   string
	addr       string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:   "wirechat-server",
	Short: "Development backend for the wirechat client",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST and websocket endpoints",
	RunE: func(cmd *cobra.Command, _ []string) error {
		bootLogger := log.New(logLevel)
		cfg, path, err := config.LoadServer(bootLogger, configPath)
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Addr = addr
		}
		if dbPath != "" {
			cfg.DatabasePath = dbPath
		}
		if !cmd.Flags().Changed("log-level") {
			logLevel = cfg.LogLevel
		}
		logger := log.New(logLevel)
		logger.Debug().Str("config", path).Msg("configuration loaded")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server, err := app.NewServer(&cfg, logger)
		if err != nil {
			return err
		}

		logger.Info().Str("addr", cfg.Addr).Msg("starting wirechat server")
		if err := server.Run(ctx); err != nil {
			return fmt.Errorf("server exited with error: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to server.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
