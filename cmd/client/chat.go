package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"

	"github.com/Tyrowin/roomchat/internal/client"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

// command is one parsed line of terminal input.
type command struct {
	leave   bool
	quit    bool
	history bool
	limit   int
	message string
}

func chatCmd() *cobra.Command {
	var (
		url      string
		origin   string
		username string
		room     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a room and chat from the terminal",
		Long: `Join a room and chat from the terminal.

Every line typed is sent as a message. Special lines:

  /history [n]  show the last n messages of the room
  /leave        leave the room and exit
  /quit         disconnect without leaving explicitly

End of input leaves the room.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := client.Dial(ctx, url,
				client.WithOrigin(origin),
				client.WithLogger(logs.GetLoggerFromString(logLevel)),
			)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if err := c.Join(username, room); err != nil {
				return err
			}
			return runChat(ctx, c, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "WebSocket endpoint of the server")
	cmd.Flags().StringVar(&origin, "origin", "http://localhost:8080", "Origin header sent during the handshake")
	cmd.Flags().StringVarP(&username, "username", "u", "", "name shown to the other members")
	cmd.Flags().StringVarP(&room, "room", "r", "", "room to join")
	cmd.Flags().StringVar(&logLevel, "log-level", "WARN", "DEBUG, INFO, WARN or ERROR")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("room")

	return cmd
}

// runChat pumps terminal input to the server and server events to out until
// input ends, the user leaves, or the connection drops.
func runChat(ctx context.Context, c *client.Client, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
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
		case <-ctx.Done():
			return nil

		case evt, ok := <-c.Events():
			if !ok {
				if err := c.Err(); err != nil {
					return fmt.Errorf("connection lost: %w", err)
				}
				return nil
			}
			fmt.Fprintln(out, render(evt))

		case line, ok := <-lines:
			if !ok {
				return c.Leave()
			}
			cmd, skip := parseLine(line)
			if skip {
				continue
			}
			switch {
			case cmd.quit:
				return nil
			case cmd.leave:
				return c.Leave()
			case cmd.history:
				if err := c.History(cmd.limit); err != nil {
					return err
				}
			default:
				if err := c.Send(cmd.message); err != nil {
					return err
				}
			}
		}
	}
}

// parseLine interprets one line of input. Blank lines are skipped.
func parseLine(line string) (command, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return command{}, true
	}

	fields := strings.Fields(trimmed)
	switch fields[0] {
	case "/leave":
		return command{leave: true}, false
	case "/quit":
		return command{quit: true}, false
	case "/history":
		cmd := command{history: true}
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil && n > 0 {
				cmd.limit = n
			}
		}
		return cmd, false
	}
	return command{message: line}, false
}

// render formats a server event for the terminal.
func render(evt client.Event) string {
	switch evt.Name {
	case protocol.EventUserJoined:
		m := evt.Membership
		return color.Cyan.Sprintf("* %s joined %s (%s)", m.Username, m.RoomID, strings.Join(m.Users, ", "))
	case protocol.EventUserLeft:
		m := evt.Membership
		return color.Cyan.Sprintf("* %s left %s (%s)", m.Username, m.RoomID, strings.Join(m.Users, ", "))
	case protocol.EventMessageReceived:
		return color.Green.Sprintf("%s:", evt.Message.Username) + " " + evt.Message.Message
	case protocol.EventHistoryResult:
		var b strings.Builder
		b.WriteString(color.Yellow.Sprintf("--- history of %s (%d) ---", evt.History.RoomID, len(evt.History.Messages)))
		for _, m := range evt.History.Messages {
			b.WriteString("\n")
			b.WriteString(color.Gray.Sprintf("#%d %s:", m.Seq, m.Username) + " " + m.Message)
		}
		return b.String()
	case protocol.EventError:
		return color.Red.Sprintf("! %s: %s", evt.Error.Code, evt.Error.Message)
	default:
		return evt.Name
	}
}
