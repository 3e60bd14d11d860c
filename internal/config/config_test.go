package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadConfigFromFile tests YAML loading with defaults applied
func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `
log_level: debug
caching: true
cache_lifetime: 60
accounts:
  - name: work
    host: imap.example.com
    username: admin
    qualifier: INBOX
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %q", cfg.LogLevel)
	}
	if cfg.Lifetime() != time.Minute {
		t.Errorf("Expected 60s lifetime, got %v", cfg.Lifetime())
	}
	if len(cfg.Accounts) != 1 {
		t.Fatalf("Expected 1 account, got %d", len(cfg.Accounts))
	}
	acc := cfg.Accounts[0]
	if acc.Port != 993 {
		t.Errorf("Expected default port 993, got %d", acc.Port)
	}
	if acc.Filter != "*" {
		t.Errorf("Expected default filter '*', got %q", acc.Filter)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

// TestLoadConfigEnvOverride tests that environment variables beat the file
func TestLoadConfigEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `
log_level: info
accounts:
  - name: work
    host: imap.example.com
    username: admin
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CACHE_LIFETIME", "5")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected env log level to win, got %q", cfg.LogLevel)
	}
	if cfg.CacheLifetime != 5 {
		t.Errorf("Expected env lifetime to win, got %d", cfg.CacheLifetime)
	}
}

// TestLoadConfigEnvAccount tests building an account purely from IMAP_*
// environment variables
func TestLoadConfigEnvAccount(t *testing.T) {
	t.Setenv("IMAP_HOST", "imap.example.com")
	t.Setenv("IMAP_USERNAME", "admin")
	t.Setenv("IMAP_QUALIFIER", "INBOX.Sales")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	acc := cfg.GetDefaultAccount()
	if acc == nil || acc.Host != "imap.example.com" || acc.Qualifier != "INBOX.Sales" {
		t.Errorf("Unexpected account %+v", acc)
	}
}

// TestLoadConfigNoAccounts tests the error when nothing is configured
func TestLoadConfigNoAccounts(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Error("Expected an error with no accounts configured")
	}
}

// TestValidate tests account validation rules
func TestValidate(t *testing.T) {
	cfg := &Config{
		Accounts: []AccountConfig{{Name: "w", Host: "", Username: "u", Port: 993}},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected a missing host to be rejected")
	}

	cfg.Accounts[0].Host = "h"
	cfg.Accounts[0].Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected an invalid port to be rejected")
	}
}
