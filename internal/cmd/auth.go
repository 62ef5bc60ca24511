package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hireline/supportchat-cli/internal/config"
	"github.com/hireline/supportchat-cli/internal/validation"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage portal credentials",
	}
	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		baseURL string
		userID  int
		token   string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the portal URL, user ID, and API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if baseURL == "" || userID == 0 {
				return fmt.Errorf("--server and --user are required")
			}
			if err := validation.ValidatePortalURL(baseURL); err != nil {
				return fmt.Errorf("invalid --server: %w", err)
			}
			if token == "" {
				// Token read from stdin so it never lands in shell history.
				_, _ = fmt.Fprint(cmd.ErrOrStderr(), "API token: ")
				reader := bufio.NewReader(cmd.InOrStdin())
				line, err := reader.ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return fmt.Errorf("empty token")
			}

			if err := config.SetToken(token); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			cfg := &config.Config{
				BaseURL: strings.TrimRight(baseURL, "/"),
				UserID:  userID,
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "server", "", "Portal base URL")
	cmd.Flags().IntVar(&userID, "user", 0, "Local user ID")
	cmd.Flags().StringVar(&token, "token", "", "API token (prompted when omitted)")
	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.DeleteToken(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current auth configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			hasToken := true
			if _, err := config.Token(); err != nil {
				hasToken = false
			}
			if isJSON() {
				return writeOut(cmd, map[string]any{
					"baseUrl":  cfg.BaseURL,
					"userId":   cfg.UserID,
					"hasToken": hasToken,
				})
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Server: %s\n", cfg.BaseURL)
			_, _ = fmt.Fprintf(out, "User:   %d\n", cfg.UserID)
			if hasToken {
				_, _ = fmt.Fprintln(out, "Token:  stored")
			} else {
				_, _ = fmt.Fprintln(out, "Token:  missing")
			}
			return nil
		},
	}
}
