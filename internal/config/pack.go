package config

import (
	"flag"
	"os"

	"github.com/google/uuid"
)

// PackConfig holds configuration for a pack agent process.
type PackConfig struct {
	ServerURL   string `yaml:"server_url"`
	ClientKey   string `yaml:"client_key"`
	GameID      string `yaml:"game_id"`
	Slug        string `yaml:"slug"`
	ProcessName string `yaml:"process_name"`
	Reconnect   bool   `yaml:"reconnect"`
	LogLevel    string `yaml:"log_level"`
	PackName    string `yaml:"pack_name"`
}

// SetDefaults initializes c with built-in defaults.
func (c *PackConfig) SetDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "ws://localhost:8080/api/packs/connect"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PackName == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "pack-" + uuid.NewString()[:8]
		}
		c.PackName = host
	}
}

// ApplyEnv overlays environment variables onto the current config values.
func (c *PackConfig) ApplyEnv() {
	if v := getEnv("SERVER_URL", ""); v != "" {
		c.ServerURL = v
	}
	if v := getEnv("CLIENT_KEY", ""); v != "" {
		c.ClientKey = v
	}
	if v := getEnv("GAME_ID", ""); v != "" {
		c.GameID = v
	}
	if v := getEnv("GAME_SLUG", ""); v != "" {
		c.Slug = v
	}
	if v := getEnv("PROCESS_NAME", ""); v != "" {
		c.ProcessName = v
	}
	if v := getEnv("RECONNECT", ""); v != "" {
		c.Reconnect = v == "true" || v == "1"
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("PACK_NAME", ""); v != "" {
		c.PackName = v
	}
}

// BindFlags binds command line flags to the current values.
func (c *PackConfig) BindFlags() {
	flag.StringVar(&c.ServerURL, "server-url", c.ServerURL, "host websocket url")
	flag.StringVar(&c.ClientKey, "client-key", c.ClientKey, "key presented to the host when connecting")
	flag.StringVar(&c.GameID, "game-id", c.GameID, "game identity for this pack")
	flag.StringVar(&c.Slug, "slug", c.Slug, "URL-friendly game slug")
	flag.StringVar(&c.ProcessName, "process-name", c.ProcessName, "game process name to watch for")
	flag.BoolVar(&c.Reconnect, "reconnect", c.Reconnect, "reconnect with backoff when the host drops")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	flag.StringVar(&c.PackName, "pack-name", c.PackName, "pack display name")
}
