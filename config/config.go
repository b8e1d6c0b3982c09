// Package config provides configuration loading and management for
// sensegraph.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete sensegraph configuration
type Config struct {
	NATS     NATSConfig     `yaml:"nats"`
	Store    StoreConfig    `yaml:"store"`
	Parser   ParserConfig   `yaml:"parser"`
	Links    LinksConfig    `yaml:"links"`
	Mastodon MastodonConfig `yaml:"mastodon"`
	Nanopub  NanopubConfig  `yaml:"nanopub"`
	Orcid    OrcidConfig    `yaml:"orcid"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = run against in-memory buckets)
	URL string `yaml:"url"`
	// Name identifies this client to the server
	Name string `yaml:"name"`
}

// StoreConfig configures the transaction manager
type StoreConfig struct {
	// TxnAttempts is the conflict retry budget per transaction
	TxnAttempts int `yaml:"txn_attempts"`
}

// ParserConfig configures the upstream semantic-extraction service
type ParserConfig struct {
	// Endpoint is the extraction service URL
	Endpoint string `yaml:"endpoint"`
	// Timeout is the maximum time to wait for extraction responses
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts bounds retries of transient failures
	MaxAttempts int `yaml:"max_attempts"`
}

// LinksConfig configures reference-metadata resolution
type LinksConfig struct {
	// FetchTimeout bounds one metadata fetch
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// UserAgent is sent on metadata fetches
	UserAgent string `yaml:"user_agent"`
	// MaxContentSize caps a fetched page body in bytes
	MaxContentSize int64 `yaml:"max_content_size"`
}

// MastodonConfig configures the mastodon adapter
type MastodonConfig struct {
	// APIDomain is the server used for accounts without a domain
	APIDomain string `yaml:"api_domain"`
}

// NanopubConfig configures the nanopub adapter
type NanopubConfig struct {
	// ServerURL is the nanopub server publish endpoint
	ServerURL string `yaml:"server_url"`
}

// OrcidConfig configures the ORCID identity adapter
type OrcidConfig struct {
	// Domain is the ORCID server (orcid.org, or sandbox.orcid.org)
	Domain string `yaml:"domain"`
	// ClientID identifies the registered application
	ClientID string `yaml:"client_id"`
	// ClientSecret authenticates the token exchange
	ClientSecret string `yaml:"client_secret"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for the scrape handler (empty = disabled)
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:  "",
			Name: "sensegraph",
		},
		Store: StoreConfig{
			TxnAttempts: 5,
		},
		Parser: ParserConfig{
			Endpoint:    "http://localhost:3000/api/parse",
			Timeout:     2 * time.Minute,
			MaxAttempts: 3,
		},
		Links: LinksConfig{
			FetchTimeout:   30 * time.Second,
			UserAgent:      "sensegraph/1.0",
			MaxContentSize: 4 * 1024 * 1024,
		},
		Mastodon: MastodonConfig{
			APIDomain: "mastodon.social",
		},
		Nanopub: NanopubConfig{
			ServerURL: "https://np.knowledgepixels.com/",
		},
		Orcid: OrcidConfig{
			Domain: "orcid.org",
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Store.TxnAttempts <= 0 {
		return fmt.Errorf("store.txn_attempts must be positive")
	}
	if c.Parser.Endpoint == "" {
		return fmt.Errorf("parser.endpoint is required")
	}
	if c.Parser.MaxAttempts <= 0 {
		return fmt.Errorf("parser.max_attempts must be positive")
	}
	if c.Links.FetchTimeout <= 0 {
		return fmt.Errorf("links.fetch_timeout must be positive")
	}
	if c.Links.MaxContentSize <= 0 {
		return fmt.Errorf("links.max_content_size must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Name != "" {
		c.NATS.Name = other.NATS.Name
	}

	if other.Store.TxnAttempts != 0 {
		c.Store.TxnAttempts = other.Store.TxnAttempts
	}

	if other.Parser.Endpoint != "" {
		c.Parser.Endpoint = other.Parser.Endpoint
	}
	if other.Parser.Timeout != 0 {
		c.Parser.Timeout = other.Parser.Timeout
	}
	if other.Parser.MaxAttempts != 0 {
		c.Parser.MaxAttempts = other.Parser.MaxAttempts
	}

	if other.Links.FetchTimeout != 0 {
		c.Links.FetchTimeout = other.Links.FetchTimeout
	}
	if other.Links.UserAgent != "" {
		c.Links.UserAgent = other.Links.UserAgent
	}
	if other.Links.MaxContentSize != 0 {
		c.Links.MaxContentSize = other.Links.MaxContentSize
	}

	if other.Mastodon.APIDomain != "" {
		c.Mastodon.APIDomain = other.Mastodon.APIDomain
	}

	if other.Nanopub.ServerURL != "" {
		c.Nanopub.ServerURL = other.Nanopub.ServerURL
	}

	if other.Orcid.Domain != "" {
		c.Orcid.Domain = other.Orcid.Domain
	}
	if other.Orcid.ClientID != "" {
		c.Orcid.ClientID = other.Orcid.ClientID
	}
	if other.Orcid.ClientSecret != "" {
		c.Orcid.ClientSecret = other.Orcid.ClientSecret
	}

	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}
