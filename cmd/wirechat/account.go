package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/api"
	"github.com/vovakirdan/wirechat-client/internal/config"
)

var password string

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account and store its token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate(cmd, args[0], func(ctx context.Context, c *api.Client, user, pass string) (string, error) {
			return c.Register(ctx, user, pass)
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Sign in and store the token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return authenticate(cmd, args[0], func(ctx context.Context, c *api.Client, user, pass string) (string, error) {
			return c.Login(ctx, user, pass)
		})
	},
}

type authFunc func(ctx context.Context, c *api.Client, username, password string) (string, error)

func authenticate(cmd *cobra.Command, username string, call authFunc) error {
	env, err := loadEnv(cmd)
	if err != nil {
		return err
	}

	pass := password
	if pass == "" {
		if pass, err = readPassword(cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), env.cfg.RequestTimeout)
	defer cancel()

	client := api.New(env.cfg.ServerURL, api.WithLogger(env.log))
	token, err := call(ctx, client, username, pass)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return fmt.Errorf("wrong username or password")
		}
		return err
	}

	env.cfg.Username = strings.TrimSpace(username)
	env.cfg.Token = token
	if err := config.SaveClient(env.path, env.cfg); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", env.cfg.Username)
	return nil
}

func readPassword(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password is required")
	}
	return line, nil
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
		rootCmd.AddCommand(c)
	}
}
