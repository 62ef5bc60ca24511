package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hireline/supportchat-cli/internal/api"
	"github.com/hireline/supportchat-cli/internal/cable"
	"github.com/hireline/supportchat-cli/internal/cache"
	"github.com/hireline/supportchat-cli/internal/chat"
	"github.com/hireline/supportchat-cli/internal/cli"
)

// inertTransport stands in when the push gateway is unreachable: calls
// succeed, no events ever arrive, and the session degrades to "stale until
// next manual open".
type inertTransport struct{}

func (inertTransport) Subscribe(context.Context, string) error          { return nil }
func (inertTransport) Unsubscribe(context.Context, string) error       { return nil }
func (inertTransport) Whisper(context.Context, string, string, any) error { return nil }

func newOpenCmd() *cobra.Command {
	var (
		showTyping   bool
		readDebounce time.Duration
		typingExpiry time.Duration
	)

	cmd := &cobra.Command{
		Use:     "open",
		Aliases: []string{"o"},
		Short:   "Open a widget session and stream the conversation",
		Long: `Open the support-chat widget session: fetch history, subscribe to the
conversation channel, mark unread messages read, and stream new events
until interrupted. Lines typed on stdin are sent as messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cc, err := getClient()
			if err != nil {
				return err
			}

			var transport chat.Transport = inertTransport{}
			var conn *cable.Client
			if c, err := cable.Connect(ctx, cc.Config.CableURL); err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "push gateway unreachable (%v), continuing without live updates\n", err)
			} else {
				conn = c
				transport = c
				defer func() { _ = conn.Close() }()
				if err := conn.Subscribe(ctx, chat.UserChannel(cc.Config.UserID)); err != nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "user channel subscribe failed: %v\n", err)
				}
			}

			session := chat.NewSession(cc.Client, transport, cc.Config.UserID, chat.Options{
				ReadDebounce: readDebounce,
				TypingExpiry: typingExpiry,
			})

			if conn != nil {
				go func() {
					for ev := range conn.Events() {
						if ev.Err != nil {
							_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "push connection lost: %v\n", ev.Err)
							return
						}
						session.HandleEvent(ev)
					}
				}()
			}

			if err := session.Open(ctx); err != nil {
				return err
			}
			for _, m := range session.Messages() {
				printMessage(cmd, m, "history")
			}
			if !isJSON() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Connected (press Ctrl+C to close)...")
			}

			// Lines typed on stdin go through the compose buffer and Send.
			go func() {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					line := scanner.Text()
					if line == "" {
						continue
					}
					session.SetComposeText(line)
					if _, err := session.Send(ctx); err != nil {
						_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "send failed (draft kept): %v\n", err)
					}
				}
			}()

			for {
				select {
				case <-ctx.Done():
					closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					if err := session.Close(closeCtx); err != nil {
						return err
					}
					persistUnread(closeCtx, cc, session.UnreadCount())
					return nil
				case n := <-session.Notifications():
					printNotification(cmd, n, showTyping)
				}
			}
		},
	}

	cmd.Flags().BoolVar(&showTyping, "typing", false, "Show typing indicators")
	cmd.Flags().DurationVar(&readDebounce, "read-debounce", chat.DefaultReadDebounce, "Coalescing window for mark-as-read calls")
	cmd.Flags().DurationVar(&typingExpiry, "typing-expiry", chat.DefaultTypingExpiry, "Typing indicator auto-expiry")
	return cmd
}

func printNotification(cmd *cobra.Command, n chat.Notification, showTyping bool) {
	switch n.Kind {
	case chat.NoteMessage:
		if n.Message != nil {
			printMessage(cmd, *n.Message, "push")
		}
	case chat.NoteTyping:
		if !showTyping {
			return
		}
		if n.Typing {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "agent is typing...")
		}
	}
}

func printMessage(cmd *cobra.Command, m api.Message, source string) {
	if isJSON() {
		_ = writeOut(cmd, map[string]any{"type": "message", "source": source, "message": m})
		return
	}
	who := m.SenderType
	if m.Sender != nil && m.Sender.Name != "" {
		who = m.Sender.Name
	}
	line := fmt.Sprintf("[%s] %s: %s", cli.FormatRelative(m.CreatedAt, time.Now()), who, m.Content)
	if m.HasAttachment() {
		line += fmt.Sprintf(" (%s)", m.AttachmentName)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
}

// persistUnread caches the reconciled badge so `supportchat unread` can
// answer without a round trip. Best-effort.
func persistUnread(ctx context.Context, cc *clientContext, count int) {
	store := cache.NewStore(cc.Config.RedisAddr, "unread", cc.Config.BaseURL, cc.Config.UserID)
	defer func() { _ = store.Close() }()
	store.Put(ctx, count)
}
