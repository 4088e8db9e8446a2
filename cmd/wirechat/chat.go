package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-client/internal/app"
	"github.com/vovakirdan/wirechat-client/internal/core"
)

const chatHelp = `commands:
  /open <target> [direct|group]   show a conversation (direct by default)
  /close                          close the conversation
  /unread                         list conversations with unread messages
  /quit                           leave
anything else is sent to the open conversation`

type commandKind int

const (
	cmdSend commandKind = iota
	cmdOpen
	cmdClose
	cmdUnread
	cmdHelp
	cmdQuit
)

type command struct {
	kind commandKind
	key  core.ConversationKey
	text string
}

func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdSend, text: line}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/open":
		if len(fields) < 2 || len(fields) > 3 {
			return command{}, errors.New("usage: /open <target> [direct|group]")
		}
		typ := core.ConversationDirect
		if len(fields) == 3 {
			parsed, err := core.ParseConversationType(fields[2])
			if err != nil {
				return command{}, err
			}
			typ = parsed
		}
		return command{kind: cmdOpen, key: core.NewConversationKey(fields[1], typ)}, nil
	case "/close":
		return command{kind: cmdClose}, nil
	case "/unread":
		return command{kind: cmdUnread}, nil
	case "/help":
		return command{kind: cmdHelp}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
}

var chatCmd = &cobra.Command{
	Use:   "chat [target]",
	Short: "Open an interactive chat",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd)
		if err != nil {
			return err
		}
		if env.cfg.Token == "" {
			return errors.New("not signed in: run `wirechat login <username>` first")
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		view := newRenderer(cmd.OutOrStdout(), env.cfg.Username)
		session := app.NewSession(env.cfg, view, env.log)
		if err := session.Connect(ctx); err != nil {
			return err
		}
		view.self = session.User()

		runErr := make(chan error, 1)
		go func() {
			runErr <- session.Run(ctx)
		}()

		view.notice(fmt.Sprintf("connected as %s, /help for commands", session.User()))
		if len(args) == 1 {
			if err := session.Open(ctx, core.NewConversationKey(args[0], core.ConversationDirect)); err != nil {
				view.notice(err.Error())
			}
		}

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				select {
				case lines <- scanner.Text():
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			select {
			case err := <-runErr:
				if err != nil {
					return fmt.Errorf("connection lost: %w", err)
				}
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if quit := handleLine(ctx, session, view, line); quit {
					return nil
				}
			}
		}
	},
}

func handleLine(ctx context.Context, session *app.Session, view *renderer, line string) bool {
	c, err := parseCommand(line)
	if err != nil {
		view.notice(err.Error())
		return false
	}

	switch c.kind {
	case cmdSend:
		if c.text == "" {
			return false
		}
		err = session.Send(ctx, c.text)
		if errors.Is(err, app.ErrNoConversation) {
			err = errors.New("no conversation open, use /open <target>")
		}
	case cmdOpen:
		err = session.Open(ctx, c.key)
	case cmdClose:
		err = session.CloseConversation(ctx)
	case cmdUnread:
		view.unread(session.Unread())
	case cmdHelp:
		view.notice(chatHelp)
	case cmdQuit:
		return true
	}
	if err != nil {
		view.notice(err.Error())
	}
	return false
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
