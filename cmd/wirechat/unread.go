package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
)

var unreadWait time.Duration

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Listen briefly and list conversations with new messages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), unreadWait)
		defer cancel()

		view := newRenderer(cmd.OutOrStdout(), env.cfg.Username)
		session := app.NewSession(env.cfg, nil, env.log)
		if err := session.Connect(ctx); err != nil {
			return err
		}
		// Nothing is opened, so every push is collected in the inbox.
		if err := session.Run(ctx); err != nil {
			return err
		}
		view.unread(session.Unread())
		return nil
	},
}

func init() {
	unreadCmd.Flags().DurationVar(&unreadWait, "wait", 5*time.Second, "how long to listen for pushes")
	rootCmd.AddCommand(unreadCmd)
}
