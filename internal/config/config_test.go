package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
[app]
id = 92

[chat]
host = "chat.example.com"
port = 5223

[timeouts]
login_ms = 5000

[reconnect]
enabled = false

[rest]
endpoint = "https://api.example.com"
token = "secret"
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}

	if cfg.App.ID != 92 {
		t.Fatalf("expected app id 92, got %d", cfg.App.ID)
	}
	if cfg.Chat.Host != "chat.example.com" || cfg.Chat.Port != 5223 {
		t.Fatalf("unexpected chat endpoint: %+v", cfg.Chat)
	}
	if cfg.Chat.Domain != "chat.example.com" {
		t.Fatalf("domain should default to host, got %q", cfg.Chat.Domain)
	}
	if cfg.Timeouts.LoginMS != 5000 {
		t.Fatalf("expected login timeout override 5000, got %d", cfg.Timeouts.LoginMS)
	}
	if cfg.Timeouts.RequestMS != 1000 {
		t.Fatalf("expected default request timeout 1000, got %d", cfg.Timeouts.RequestMS)
	}
	if cfg.Reconnect.Enabled {
		t.Fatalf("expected reconnect disabled by override")
	}
	if cfg.REST.Endpoint != "https://api.example.com" || cfg.REST.Token != "secret" {
		t.Fatalf("unexpected rest config: %+v", cfg.REST)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Timeouts.LoginMS != 10000 {
		t.Fatalf("expected 10 s login timeout, got %d ms", cfg.Timeouts.LoginMS)
	}
	if cfg.Chat.Port != 5222 {
		t.Fatalf("expected default port 5222, got %d", cfg.Chat.Port)
	}
	if !cfg.Reconnect.Enabled || cfg.Reconnect.BaseDelayMS == 0 {
		t.Fatalf("unexpected reconnect defaults: %+v", cfg.Reconnect)
	}
}
