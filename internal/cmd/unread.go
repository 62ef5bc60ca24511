package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hireline/supportchat-cli/internal/cache"
)

func newUnreadCmd() *cobra.Command {
	var reconcile bool

	cmd := &cobra.Command{
		Use:     "unread",
		Aliases: []string{"u"},
		Short:   "Show the unread badge",
		Long: `Show the cached unread badge. With --reconcile, fetch the authoritative
count from the server and refresh the cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := getClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store := cache.NewStore(cc.Config.RedisAddr, "unread", cc.Config.BaseURL, cc.Config.UserID)
			defer func() { _ = store.Close() }()

			count := 0
			cached := false
			if !reconcile {
				cached = store.Get(ctx, &count)
			}
			if !cached {
				count, err = cc.Client.GetUnreadCount(ctx)
				if err != nil {
					return err
				}
				store.Put(ctx, count)
			}

			if isJSON() {
				return writeOut(cmd, map[string]any{"unreadCount": count, "cached": cached})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "Fetch the authoritative count from the server")
	return cmd
}
