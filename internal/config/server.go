package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds configuration for the packbridge host.
type ServerConfig struct {
	Port           int            `yaml:"port"`
	MetricsAddr    string         `yaml:"metrics_addr"`
	ClientKey      string         `yaml:"client_key"`
	RedisAddr      string         `yaml:"redis_addr"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	LogLevel       string         `yaml:"log_level"`
	ConfigFile     string         `yaml:"-"`
	GameConfigs    map[string]any `yaml:"game_configs"`
}

// SetDefaults initializes c with built-in defaults.
func (c *ServerConfig) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = fmt.Sprintf(":%d", c.Port)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ConfigFile == "" {
		c.ConfigFile = DefaultConfigPath("host.yaml")
	}
}

// MetricsOnMainPort reports whether the metrics endpoint shares the main
// HTTP listener. The comparison is by port, so "0.0.0.0:8080" and ":8080"
// both co-host when the main port is 8080.
func (c *ServerConfig) MetricsOnMainPort() bool {
	if c.MetricsAddr == "" {
		return true
	}
	_, port, err := net.SplitHostPort(c.MetricsAddr)
	if err != nil {
		port = strings.TrimPrefix(c.MetricsAddr, ":")
	}
	return port == strconv.Itoa(c.Port)
}

// ApplyEnv overlays environment variables onto the current config values.
func (c *ServerConfig) ApplyEnv() {
	if v := getEnv("CONFIG_FILE", ""); v != "" {
		c.ConfigFile = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("PORT", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v := getEnv("METRICS_ADDR", ""); v != "" {
		if strings.Contains(v, ":") {
			c.MetricsAddr = v
		} else {
			c.MetricsAddr = ":" + v
		}
	}
	if v := getEnv("CLIENT_KEY", ""); v != "" {
		c.ClientKey = v
	}
	if v := getEnv("REDIS_ADDR", ""); v != "" {
		c.RedisAddr = v
	}
	if v := getEnv("REQUEST_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitComma(v)
	}
}

// LoadFile overlays values from the YAML file at path.
func (c *ServerConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// BindFlags binds command line flags to the current values so main can call
// flag.Parse().
func (c *ServerConfig) BindFlags() {
	flag.StringVar(&c.ConfigFile, "config", c.ConfigFile, "path to YAML config file")
	flag.IntVar(&c.Port, "port", c.Port, "HTTP listen port")
	flag.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "Prometheus metrics listen address; defaults to the main port")
	flag.StringVar(&c.ClientKey, "client-key", c.ClientKey, "shared key packs must present when connecting; leave empty to disable auth")
	flag.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis URL for the cache store; leave empty for in-memory")
	flag.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "maximum duration of a pack command round trip")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	flag.Func("allowed-origins", "comma separated list of allowed CORS origins", func(v string) error {
		c.AllowedOrigins = splitComma(v)
		return nil
	})
}
