package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Parser.Endpoint != "http://localhost:3000/api/parse" {
		t.Errorf("expected default parser endpoint http://localhost:3000/api/parse, got %s", cfg.Parser.Endpoint)
	}
	if cfg.Store.TxnAttempts != 5 {
		t.Errorf("expected default txn attempts 5, got %d", cfg.Store.TxnAttempts)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("expected empty NATS URL by default, got %s", cfg.NATS.URL)
	}
	if cfg.Links.FetchTimeout != 30*time.Second {
		t.Errorf("expected default fetch timeout 30s, got %v", cfg.Links.FetchTimeout)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing parser endpoint",
			modify:  func(c *Config) { c.Parser.Endpoint = "" },
			wantErr: true,
		},
		{
			name:    "zero txn attempts",
			modify:  func(c *Config) { c.Store.TxnAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "negative fetch timeout",
			modify:  func(c *Config) { c.Links.FetchTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "zero max content size",
			modify:  func(c *Config) { c.Links.MaxContentSize = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
nats:
  url: "nats://test:4222"
parser:
  endpoint: "http://test:1234/parse"
  timeout: 10m
  max_attempts: 5
links:
  user_agent: "test-agent"
mastodon:
  api_domain: "example.social"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Parser.Endpoint != "http://test:1234/parse" {
		t.Errorf("expected parser endpoint http://test:1234/parse, got %s", cfg.Parser.Endpoint)
	}
	if cfg.Parser.Timeout != 10*time.Minute {
		t.Errorf("expected parser timeout 10m, got %v", cfg.Parser.Timeout)
	}
	if cfg.Parser.MaxAttempts != 5 {
		t.Errorf("expected parser max attempts 5, got %d", cfg.Parser.MaxAttempts)
	}
	if cfg.Links.UserAgent != "test-agent" {
		t.Errorf("expected user agent test-agent, got %s", cfg.Links.UserAgent)
	}
	if cfg.Mastodon.APIDomain != "example.social" {
		t.Errorf("expected mastodon api domain example.social, got %s", cfg.Mastodon.APIDomain)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		NATS: NATSConfig{
			URL: "nats://override:4222",
		},
		Parser: ParserConfig{
			Endpoint: "http://override/parse",
		},
	}

	base.Merge(override)

	if base.NATS.URL != "nats://override:4222" {
		t.Errorf("expected NATS URL nats://override:4222, got %s", base.NATS.URL)
	}
	if base.Parser.Endpoint != "http://override/parse" {
		t.Errorf("expected parser endpoint http://override/parse, got %s", base.Parser.Endpoint)
	}
	// Untouched fields should remain from base
	if base.Store.TxnAttempts != 5 {
		t.Errorf("expected txn attempts to remain 5, got %d", base.Store.TxnAttempts)
	}
	if base.Mastodon.APIDomain != "mastodon.social" {
		t.Errorf("expected mastodon api domain to remain default, got %s", base.Mastodon.APIDomain)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Parser.Endpoint = "http://saved/parse"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Parser.Endpoint != "http://saved/parse" {
		t.Errorf("expected parser endpoint http://saved/parse, got %s", loaded.Parser.Endpoint)
	}
}
