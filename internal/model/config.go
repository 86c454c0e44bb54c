package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// MailConfig holds the IMAP/SMTP connection settings for the mailbox
// the assistant replies from.
type MailConfig struct {
	// IMAPHost is the hostname of the IMAP server.
	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`

	// IMAPPort is the IMAP port (usually 993 for implicit TLS).
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`

	// SMTPHost is the hostname of the SMTP submission server.
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`

	// SMTPPort is the SMTP port (465 for implicit TLS, 587 for STARTTLS).
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`

	// Username is the mailbox login, also used as the From address.
	Username string `mapstructure:"username" yaml:"username"`

	// TLS selects implicit TLS when true, STARTTLS otherwise.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// SentMailbox is the IMAP mailbox holding the user's sent messages.
	SentMailbox string `mapstructure:"sent_mailbox" yaml:"sent_mailbox"`
}

// AIConfig holds settings for the reply synthesis integration.
type AIConfig struct {
	Model     string `mapstructure:"model" yaml:"model"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// StoreConfig holds settings for the conversation store.
type StoreConfig struct {
	// DBPath is the SQLite database file path. Empty means the default
	// location next to the config file.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// PipelineConfig holds batch-run tuning knobs.
type PipelineConfig struct {
	// FetchLimit caps how many unread messages one run processes.
	FetchLimit int `mapstructure:"fetch_limit" yaml:"fetch_limit"`

	// SentLimit caps how many sent messages the self-history refresh reads.
	SentLimit int `mapstructure:"sent_limit" yaml:"sent_limit"`

	// MaxRetries bounds retries of transient transport failures.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// RetryBackoff is the initial backoff between retries; it doubles
	// after each attempt.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mail     MailConfig     `mapstructure:"mail" yaml:"mail"`
	AI       AIConfig       `mapstructure:"ai" yaml:"ai"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailassistant/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailassistant", "config.yaml")
}

// DefaultDBPath returns the default SQLite database location, next to
// the configuration file.
func DefaultDBPath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "conversations.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Mail: MailConfig{
			IMAPPort:    "993",
			SMTPPort:    "465",
			TLS:         true,
			SentMailbox: "Sent",
		},
		AI: AIConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
		},
		Pipeline: PipelineConfig{
			FetchLimit:   5,
			SentLimit:    5,
			MaxRetries:   3,
			RetryBackoff: 2 * time.Second,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("mail.imap_port", "993")
	v.SetDefault("mail.smtp_port", "465")
	v.SetDefault("mail.tls", true)
	v.SetDefault("mail.sent_mailbox", "Sent")
	v.SetDefault("ai.model", "claude-sonnet-4-20250514")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("pipeline.fetch_limit", 5)
	v.SetDefault("pipeline.sent_limit", 5)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.retry_backoff", "2s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = DefaultDBPath()
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("mail", cfg.Mail)
	v.Set("ai", cfg.AI)
	v.Set("store", cfg.Store)
	v.Set("pipeline", cfg.Pipeline)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
