package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nhle/mail-assistant/internal/ai"
	"github.com/nhle/mail-assistant/internal/credential"
	"github.com/nhle/mail-assistant/internal/mail"
	"github.com/nhle/mail-assistant/internal/model"
	"github.com/nhle/mail-assistant/internal/pipeline"
	"github.com/nhle/mail-assistant/internal/store"
)

func main() {
	configPath := flag.String(
		"config", model.DefaultConfigPath(), "path to config file",
	)
	initConfig := flag.Bool(
		"init", false, "write the current (or default) config to the config path and exit",
	)
	setCredential := flag.String(
		"set-credential", "",
		fmt.Sprintf("store a credential (%s or %s) read from stdin, then exit",
			credential.KeyMailPassword, credential.KeyAnthropicAPI),
	)
	deleteCredential := flag.String(
		"delete-credential", "", "remove a stored credential, then exit",
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *setCredential != "" {
		if err := storeCredential(*setCredential, os.Stdin); err != nil {
			logger.Error("store credential",
				"key", *setCredential, "error", err)
			os.Exit(1)
		}
		logger.Info("credential stored", "key", *setCredential)
		return
	}
	if *deleteCredential != "" {
		if err := credential.Delete(*deleteCredential); err != nil {
			logger.Error("delete credential",
				"key", *deleteCredential, "error", err)
			os.Exit(1)
		}
		logger.Info("credential deleted", "key", *deleteCredential)
		return
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	if *initConfig {
		if err := model.SaveConfig(*configPath, cfg); err != nil {
			logger.Error("write config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		logger.Info("config written", "path", *configPath)
		return
	}

	if cfg.Mail.Username == "" || cfg.Mail.IMAPHost == "" {
		logger.Error("mail account not configured",
			"config", *configPath)
		os.Exit(1)
	}

	mailPassword, err := credential.Get(credential.KeyMailPassword)
	if err != nil {
		logger.Error("resolve mail password", "error", err)
		os.Exit(1)
	}
	apiKey, err := credential.Get(credential.KeyAnthropicAPI)
	if err != nil {
		logger.Error("resolve API key", "error", err)
		os.Exit(1)
	}

	db, err := store.NewSQLiteStore(cfg.Store.DBPath)
	if err != nil {
		logger.Error("open conversation store",
			"path", cfg.Store.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	transport := mail.NewClient(cfg.Mail, mailPassword, logger)
	generator := ai.NewClaude(apiKey, cfg.AI.Model, cfg.AI.MaxTokens)
	synth := ai.NewSynthesizer(generator)

	p := pipeline.New(db, transport, synth, logger, cfg.Pipeline)

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	summary, err := p.Run(ctx)
	if summary != nil {
		logger.Info("run complete",
			"fetched", summary.Fetched,
			"replied", summary.Replied,
			"skipped", summary.Skipped,
			"failed", summary.Failed,
			"sent_synced", summary.SentSynced,
		)
	}
	if err != nil {
		logger.Error("run aborted", "error", err)
		os.Exit(1)
	}
}

// storeCredential reads one line from r and saves it in the keyring
// under key. Reading from stdin keeps the secret out of the process
// argument list.
func storeCredential(key string, r io.Reader) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("reading credential value: %w", err)
	}

	value := strings.TrimSpace(line)
	if value == "" {
		return fmt.Errorf("empty credential value for %q", key)
	}

	return credential.Set(key, value)
}
