package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hireline/supportchat-cli/internal/outfmt"
)

// writeOut renders v as JSON on stdout, honoring the global --jq flag.
func writeOut(cmd *cobra.Command, v any) error {
	return outfmt.WriteJSON(cmd.OutOrStdout(), v, flags.JQ)
}
