package cmd

import (
	"fmt"
	"strings"

	"github.com/hireline/supportchat-cli/internal/api"
	"github.com/hireline/supportchat-cli/internal/config"
)

// clientContext bundles everything a command needs to talk to the portal.
type clientContext struct {
	Client *api.Client
	Config *config.Config
}

// getClient resolves config, token, and flag overrides into an API client.
func getClient() (*clientContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(flags.BaseURL, "/")
	}
	if flags.UserID != 0 {
		cfg.UserID = flags.UserID
	}
	if cfg.UserID == 0 {
		return nil, fmt.Errorf("no user ID configured (set SUPPORTCHAT_USER_ID or --user)")
	}

	token, err := config.Token()
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.BaseURL, token)
	client.UserAgent = "supportchat-cli/" + version
	if flags.Timeout > 0 {
		client.HTTP.Timeout = flags.Timeout
	}
	return &clientContext{Client: client, Config: cfg}, nil
}
