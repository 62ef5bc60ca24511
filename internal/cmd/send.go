package cmd

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hireline/supportchat-cli/internal/chat"
	"github.com/hireline/supportchat-cli/internal/dryrun"
)

func newSendCmd() *cobra.Command {
	var (
		filePath string
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:     "send [text]",
		Aliases: []string{"s"},
		Short:   "Send a message to the support conversation",
		Long: `Send text and/or a file attachment as one message. Text and attachment
travel in a single atomic request; if it fails, nothing is sent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			if strings.TrimSpace(text) == "" && filePath == "" {
				return chat.ErrEmptyMessage
			}

			ctx := dryrun.WithDryRun(cmd.Context(), dryRun)

			if dryrun.IsEnabled(ctx) {
				return previewSend(cmd, text, filePath)
			}

			cc, err := getClient()
			if err != nil {
				return err
			}

			session := chat.NewSession(cc.Client, inertTransport{}, cc.Config.UserID, chat.Options{})
			if err := session.Open(ctx); err != nil {
				return err
			}
			defer func() { _ = session.Close(ctx) }()

			if filePath != "" {
				data, err := os.ReadFile(filePath)
				if err != nil {
					return fmt.Errorf("read attachment: %w", err)
				}
				name := filepath.Base(filePath)
				if err := session.Attach(name, detectMediaType(name, data), data); err != nil {
					return err
				}
			}
			session.SetComposeText(text)

			msg, err := session.Send(ctx)
			if err != nil {
				return err
			}
			if isJSON() {
				return writeOut(cmd, msg)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Sent message %d\n", msg.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Attach a file (max 10MB)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview the message without sending")
	return cmd
}

// previewSend validates the compose inputs and prints what a real send
// would transmit.
func previewSend(cmd *cobra.Command, text, filePath string) error {
	p := &dryrun.Preview{
		Operation: "send message",
		Details:   map[string]any{},
	}
	if text != "" {
		p.Details["content"] = text
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("read attachment: %w", err)
		}
		name := filepath.Base(filePath)
		if err := chat.ValidateAttachment(name, int64(len(data))); err != nil {
			return err
		}
		p.Details["attachment"] = name
		p.Details["mediaType"] = detectMediaType(name, data)
		p.Details["size"] = len(data)
	}
	p.Write(cmd.OutOrStdout())
	return nil
}

// detectMediaType prefers the filename extension and falls back to content
// sniffing.
func detectMediaType(name string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}
