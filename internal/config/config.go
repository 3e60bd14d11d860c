package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds the application configuration
type Config struct {
	LogLevel string `yaml:"log_level"`

	// StorePath is the sqlite file folder listings are mirrored to for
	// warm starts; empty disables persistence.
	StorePath string `yaml:"store_path"`

	// Caching false makes every load bypass the cache.
	Caching bool `yaml:"caching"`

	// CacheLifetime is the maximum age, in seconds, of a cached category;
	// zero means no time-based expiry.
	CacheLifetime int `yaml:"cache_lifetime"`

	Accounts []AccountConfig `yaml:"accounts"`
}

// AccountConfig holds the connection settings for a single IMAP account
type AccountConfig struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Qualifier is the namespace prefix listings start out rooted under.
	Qualifier string `yaml:"qualifier"`

	// Filter is the listing wildcard, defaulting to "*".
	Filter string `yaml:"filter"`
}

// Lifetime returns the cache lifetime as a duration
func (c *Config) Lifetime() time.Duration {
	return time.Duration(c.CacheLifetime) * time.Second
}

// LoadConfig loads configuration from an optional YAML file with environment
// variables taking precedence
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		LogLevel:      "info",
		Caching:       true,
		CacheLifetime: 300,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.StorePath = getEnv("STORE_PATH", cfg.StorePath)
	cfg.Caching = getEnvBool("CACHING", cfg.Caching)
	cfg.CacheLifetime = getEnvInt("CACHE_LIFETIME", cfg.CacheLifetime)

	if acc := loadAccountFromEnv(); acc != nil {
		cfg.Accounts = append(cfg.Accounts, *acc)
	}

	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("no IMAP accounts configured")
	}

	for i := range cfg.Accounts {
		acc := &cfg.Accounts[i]
		if acc.Name == "" {
			acc.Name = acc.Username
		}
		if acc.Port == 0 {
			acc.Port = 993
		}
		if acc.Filter == "" {
			acc.Filter = "*"
		}
	}

	return cfg, nil
}

// loadAccountFromEnv builds an account from IMAP_* environment variables,
// returning nil when none are set
func loadAccountFromEnv() *AccountConfig {
	host := getEnv("IMAP_HOST", "")
	if host == "" {
		return nil
	}
	return &AccountConfig{
		Name:      getEnv("ACCOUNT_NAME", "default"),
		Host:      host,
		Port:      getEnvInt("IMAP_PORT", 993),
		Username:  getEnv("IMAP_USERNAME", ""),
		Password:  getEnv("IMAP_PASSWORD", ""),
		Qualifier: getEnv("IMAP_QUALIFIER", ""),
		Filter:    getEnv("IMAP_FILTER", "*"),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.CacheLifetime < 0 {
		return fmt.Errorf("cache_lifetime must not be negative")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}
	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if acc.Host == "" {
			return fmt.Errorf("account %s: host is required", acc.Name)
		}
		if acc.Username == "" {
			return fmt.Errorf("account %s: username is required", acc.Name)
		}
		if acc.Port < 1 || acc.Port > 65535 {
			return fmt.Errorf("account %s: invalid port", acc.Name)
		}
	}
	return nil
}

// GetAccountByName finds an account by name
func (c *Config) GetAccountByName(name string) (*AccountConfig, error) {
	for i := range c.Accounts {
		if c.Accounts[i].Name == name {
			return &c.Accounts[i], nil
		}
	}
	return nil, fmt.Errorf("account not found: %s", name)
}

// GetDefaultAccount returns the account named "default", or the first one
func (c *Config) GetDefaultAccount() *AccountConfig {
	if len(c.Accounts) == 0 {
		return nil
	}
	for i := range c.Accounts {
		if c.Accounts[i].Name == "default" {
			return &c.Accounts[i]
		}
	}
	return &c.Accounts[0]
}

// AccountNames returns a list of all account names
func (c *Config) AccountNames() []string {
	names := make([]string, len(c.Accounts))
	for i := range c.Accounts {
		names[i] = c.Accounts[i].Name
	}
	return names
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
