package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name        string
		goos        string
		home        string
		programData string
		want        string
	}{
		{
			name: "linux",
			goos: "linux",
			home: "/home/user",
			want: "/etc/packbridge/host.yaml",
		},
		{
			name: "darwin",
			goos: "darwin",
			home: "/Users/test",
			want: "/Users/test/Library/Application Support/packbridge/host.yaml",
		},
		{
			name:        "windows",
			goos:        "windows",
			programData: "C:\\ProgramData",
			want:        "C:/ProgramData/packbridge/host.yaml",
		},
		{
			name: "windows default ProgramData",
			goos: "windows",
			want: "C:/ProgramData/packbridge/host.yaml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveConfigPath(tt.goos, tt.home, tt.programData, "host.yaml")
			got = strings.ReplaceAll(got, "\\", "/")
			if got != tt.want {
				t.Errorf("config path: got %q want %q", got, tt.want)
			}
		})
	}
}

func TestServerConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.yaml")
	if err := os.WriteFile(path, []byte("port: 9999\nlog_level: debug\nredis_addr: localhost:6379\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PORT", "7777")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REQUEST_TIMEOUT", "45s")

	var cfg ServerConfig
	cfg.SetDefaults()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("load file: %v", err)
	}
	cfg.ApplyEnv()

	// env beats file, file beats defaults
	if cfg.Port != 7777 {
		t.Fatalf("port = %d; want env override", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q; want file value", cfg.LogLevel)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("redis addr = %q; want file value", cfg.RedisAddr)
	}
	if cfg.RequestTimeout != 45*time.Second {
		t.Fatalf("request timeout = %v; want env value", cfg.RequestTimeout)
	}
}

func TestMetricsOnMainPort(t *testing.T) {
	tests := []struct {
		addr string
		port int
		want bool
	}{
		{"", 8080, true},
		{":8080", 8080, true},
		{"0.0.0.0:8080", 8080, true},
		{"127.0.0.1:8080", 8080, true},
		{":9090", 8080, false},
		{"0.0.0.0:9090", 8080, false},
	}
	for _, tt := range tests {
		cfg := ServerConfig{Port: tt.port, MetricsAddr: tt.addr}
		if got := cfg.MetricsOnMainPort(); got != tt.want {
			t.Errorf("MetricsOnMainPort(%q, %d) = %v; want %v", tt.addr, tt.port, got, tt.want)
		}
	}
}

func TestPackConfigDefaults(t *testing.T) {
	var cfg PackConfig
	cfg.SetDefaults()
	if cfg.ServerURL == "" || cfg.PackName == "" {
		t.Fatalf("defaults missing: %+v", cfg)
	}
	t.Setenv("GAME_ID", "league")
	t.Setenv("PROCESS_NAME", "LeagueClient.exe")
	cfg.ApplyEnv()
	if cfg.GameID != "league" || cfg.ProcessName != "LeagueClient.exe" {
		t.Fatalf("env overlay missing: %+v", cfg)
	}
}
