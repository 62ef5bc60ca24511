// Package cmd implements the supportchat CLI.
package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hireline/supportchat-cli/internal/api"
	"github.com/hireline/supportchat-cli/internal/debug"
)

// rootFlags holds global CLI flags.
type rootFlags struct {
	JSON    bool
	JQ      string
	Debug   bool
	BaseURL string
	UserID  int
	Timeout time.Duration
}

// flags is package-level mutable state reset at the start of every
// Execute() call. Tests depend on this reset for isolation.
var flags = rootFlags{
	Timeout: api.DefaultTimeout,
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:                "supportchat",
		Short:              "CLI for the Hireline support-chat widget",
		Long:               "Drive a Hireline support-chat widget session from the terminal:\nfetch history, stream live messages, send replies, and track the unread badge.",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true, // we provide our own did-you-mean below
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			debug.SetupLogger(flags.Debug)
			cmd.SetContext(debug.WithDebug(cmd.Context(), flags.Debug))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&flags.JSON, "json", false, "Output JSON")
	pf.StringVar(&flags.JQ, "jq", "", "Filter JSON output with a jq expression")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.StringVar(&flags.BaseURL, "base-url", "", "Portal base URL (overrides config)")
	pf.IntVar(&flags.UserID, "user", 0, "Local user ID (overrides config)")
	pf.DurationVar(&flags.Timeout, "timeout", api.DefaultTimeout, "Per-request timeout")

	root.AddCommand(newAuthCmd())
	root.AddCommand(newOpenCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newUnreadCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command.
func Execute(ctx context.Context, args []string) error {
	// Reset flag defaults for each execution; tests rely on this.
	flags = rootFlags{Timeout: api.DefaultTimeout}

	root := newRootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		err = enhanceUnknownError(root, err)
	}
	return err
}

// enhanceUnknownError appends did-you-mean suggestions to cobra's
// unknown-command error.
func enhanceUnknownError(root *cobra.Command, err error) error {
	msg := err.Error()
	if !strings.HasPrefix(msg, "unknown command") {
		return err
	}
	input := unknownCommandName(msg)
	if input == "" {
		return err
	}
	suggestions := suggestCommands(root, input)
	if len(suggestions) == 0 {
		return err
	}
	return fmt.Errorf("%s\n\nDid you mean?\n\t%s", msg, strings.Join(suggestions, "\n\t"))
}

func unknownCommandName(msg string) string {
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	rest := msg[start+1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func isJSON() bool {
	return flags.JSON || flags.JQ != ""
}
