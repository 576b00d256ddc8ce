// ABOUTME: Entry point for the agent backend API server
// ABOUTME: Serves the v1 and v2 HTTP surfaces over Postgres and Ollama

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/UTXO-Global/utxo-global-tgbot/internal/chat"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/config"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/logging"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/model"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/notify"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/server"
	"github.com/UTXO-Global/utxo-global-tgbot/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
        _                                          _
  _   _| |___  _____        __ _  __ _  ___ _ __ | |_
 | | | | __\ \/ / _ \ _____ / _' |/ _' |/ _ \ '_ \| __|
 | |_| | |_ >  < (_) |_____| (_| | (_| |  __/ | | | |_
  \__,_|\__/_/\_\___/       \__,_|\__, |\___|_| |_|\__|
                                  |___/
`

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

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := logging.Setup(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:   %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Model:  %s\n", cfg.Model.Name)
	fmt.Println()

	logger.Info("starting agent API",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"model", cfg.Model.Name,
	)

	st, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	invoker, err := model.NewOllamaInvoker(cfg.Model.Host, cfg.Model.Name)
	if err != nil {
		return fmt.Errorf("creating model invoker: %w", err)
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Telegram.BotToken != "" {
		tn, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, logger)
		if err != nil {
			logger.Warn("telegram notifier unavailable, notifications disabled", "error", err)
		} else {
			notifier = tn
		}
	}

	chatSvc := chat.New(st, invoker, logger)
	srv := server.New(cfg.Server.HTTPAddr, st, chatSvc, notifier, cfg.Auth.AppKey, logger)

	return srv.Run(ctx)
}
