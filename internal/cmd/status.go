package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hireline/supportchat-cli/internal/api"
	"github.com/hireline/supportchat-cli/internal/cli"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"st"},
		Short:   "Show the support conversation and unread count",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := getClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var (
				conv   *api.Conversation
				unread int
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				c, err := cc.Client.GetConversation(gctx)
				if err != nil {
					return err
				}
				conv = c
				return nil
			})
			g.Go(func() error {
				n, err := cc.Client.GetUnreadCount(gctx)
				if err != nil {
					return err
				}
				unread = n
				return nil
			})
			if err := g.Wait(); err != nil {
				return err
			}

			if isJSON() {
				return writeOut(cmd, map[string]any{
					"conversation": conv,
					"unreadCount":  unread,
				})
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Conversation %d (%s)\n", conv.ID, conv.Status)
			if conv.AgentID != nil {
				_, _ = fmt.Fprintf(out, "Agent: %d\n", *conv.AgentID)
			} else {
				_, _ = fmt.Fprintln(out, "Agent: unassigned")
			}
			if conv.LastMessageAt != nil {
				_, _ = fmt.Fprintf(out, "Last message: %s\n", cli.FormatRelative(*conv.LastMessageAt, time.Now()))
			}
			_, _ = fmt.Fprintf(out, "Unread: %d\n", unread)
			return nil
		},
	}
}
