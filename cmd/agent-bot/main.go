// ABOUTME: Entry point for the Telegram bot
// ABOUTME: Long-polls Telegram and relays private chats to the agent API

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/UTXO-Global/utxo-global-tgbot/internal/bot"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/config"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/logging"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/store"
)

// getConfigPath returns the path to the backend config file.
// Priority: TGBOT_CONFIG env var > ./config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("TGBOT_CONFIG"); envPath != "" {
		return envPath
	}
	return "config.yaml"
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := logging.Setup(cfg.Logging)

	logger.Info("starting telegram bot",
		"config", configPath,
		"bot_name", cfg.Telegram.BotName,
		"agent_api", cfg.Telegram.AgentAPIURL,
	)

	// The bot records joining members directly; without a database it
	// still greets and chats.
	var members bot.MemberStore
	if cfg.Database.URL != "" {
		st, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()
		members = st
	} else {
		logger.Warn("no database configured, member onboarding will not be recorded")
	}

	client := bot.NewAgentClient(cfg.Telegram.AgentAPIURL, cfg.Auth.AppKey, cfg.Telegram.BotName)
	b := bot.New(cfg.Telegram.BotToken, cfg.Telegram.KYCLink, client, members, logger)

	return b.Run(ctx)
}
