// Package config loads CLI configuration: a JSON file under the user
// config dir, environment overrides, and the API token held in the OS
// keychain.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/99designs/keyring"
	"github.com/joho/godotenv"
)

const (
	keyringService = "supportchat-cli"
	tokenKey       = "api-token"
)

// ErrNotConfigured is returned when no base URL is available from any source.
var ErrNotConfigured = errors.New("not configured: set SUPPORTCHAT_BASE_URL or run `supportchat auth login`")

// Config is the resolved CLI configuration.
type Config struct {
	BaseURL   string `json:"baseUrl"`
	CableURL  string `json:"cableUrl,omitempty"`
	UserID    int    `json:"userId"`
	RedisAddr string `json:"redisAddr,omitempty"`
}

// Dir returns the config directory, honoring SUPPORTCHAT_CONFIG_DIR for tests.
func Dir() (string, error) {
	if dir := os.Getenv("SUPPORTCHAT_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "supportchat"), nil
}

func filePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config file and applies environment overrides.
// A missing file is not an error; env vars alone are a valid setup.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	path, err := filePath()
	if err != nil {
		return nil, err
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("SUPPORTCHAT_BASE_URL")); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("SUPPORTCHAT_CABLE_URL")); v != "" {
		cfg.CableURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SUPPORTCHAT_USER_ID")); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("SUPPORTCHAT_USER_ID: %w", err)
		}
		cfg.UserID = id
	}
	if v := strings.TrimSpace(os.Getenv("SUPPORTCHAT_REDIS_ADDR")); v != "" {
		cfg.RedisAddr = v
	}

	if cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	if cfg.CableURL == "" {
		cfg.CableURL = deriveCableURL(cfg.BaseURL)
	}
	return cfg, nil
}

// Save writes the config file (0600: it names the server and user).
func Save(cfg *Config) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// deriveCableURL maps an https base URL to its wss push endpoint.
func deriveCableURL(baseURL string) string {
	u := baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/cable"
}

func openKeyring() (keyring.Keyring, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return keyring.Open(keyring.Config{
		ServiceName: keyringService,
		// File backend as fallback for headless environments.
		FileDir: filepath.Join(dir, "keyring"),
		FilePasswordFunc: func(string) (string, error) {
			return keyringService, nil
		},
	})
}

// Token returns the API token: SUPPORTCHAT_TOKEN when set, otherwise the
// keychain entry.
func Token() (string, error) {
	if v := strings.TrimSpace(os.Getenv("SUPPORTCHAT_TOKEN")); v != "" {
		return v, nil
	}
	ring, err := openKeyring()
	if err != nil {
		return "", fmt.Errorf("open keyring: %w", err)
	}
	item, err := ring.Get(tokenKey)
	if err != nil {
		return "", fmt.Errorf("no API token stored (set SUPPORTCHAT_TOKEN or run `supportchat auth login`): %w", err)
	}
	return string(item.Data), nil
}

// SetToken stores the API token in the keychain.
func SetToken(token string) error {
	ring, err := openKeyring()
	if err != nil {
		return fmt.Errorf("open keyring: %w", err)
	}
	return ring.Set(keyring.Item{
		Key:   tokenKey,
		Data:  []byte(token),
		Label: "Hireline supportchat API token",
	})
}

// DeleteToken removes the stored API token. Missing entries are not errors.
func DeleteToken() error {
	ring, err := openKeyring()
	if err != nil {
		return fmt.Errorf("open keyring: %w", err)
	}
	err = ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
