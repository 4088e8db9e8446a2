package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/config"
	"github.com/vovakirdan/wirechat-client/internal/log"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "wirechat",
	Short: "Terminal chat client",
	Long: `wirechat keeps one conversation on screen while messages for every
other conversation are collected as unread.

Quick Start:
  wirechat register alice
  wirechat chat
  /open bob`,
	SilenceUsage: true,
}

// clientEnv is the configuration and logger shared by subcommands.
type clientEnv struct {
	cfg  config.Client
	path string
	log  *zerolog.Logger
}

func loadEnv(cmd *cobra.Command) (*clientEnv, error) {
	cfg, path, err := config.LoadClient(nil, configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	return &clientEnv{
		cfg:  cfg,
		path: path,
		log:  log.NewWithWriter(level, os.Stderr),
	}, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to client.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
