package model

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Mail.IMAPPort != "993" || !cfg.Mail.TLS {
		t.Errorf("mail defaults = %+v", cfg.Mail)
	}
	if cfg.Mail.SentMailbox != "Sent" {
		t.Errorf("sent mailbox = %q, want Sent", cfg.Mail.SentMailbox)
	}
	if cfg.Pipeline.FetchLimit != 5 || cfg.Pipeline.RetryBackoff != 2*time.Second {
		t.Errorf("pipeline defaults = %+v", cfg.Pipeline)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mailassistant", "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	cfg.Mail.Username = "me@example.com"
	cfg.Mail.IMAPHost = "imap.example.com"
	cfg.Mail.SMTPHost = "smtp.example.com"
	cfg.Pipeline.FetchLimit = 7

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() after save error = %v", err)
	}
	if loaded.Mail.Username != "me@example.com" {
		t.Errorf("username = %q, want me@example.com", loaded.Mail.Username)
	}
	if loaded.Mail.IMAPHost != "imap.example.com" {
		t.Errorf("imap host = %q, want imap.example.com", loaded.Mail.IMAPHost)
	}
	if loaded.Pipeline.FetchLimit != 7 {
		t.Errorf("fetch limit = %d, want 7", loaded.Pipeline.FetchLimit)
	}
	if loaded.AI.Model == "" {
		t.Error("AI model default lost in round trip")
	}
}
