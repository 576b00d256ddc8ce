// Package config handles configuration loading for the agent backend.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. One file serves both binaries; the API server and the
// Telegram bot each validate only the sections they use.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TGBOT_CONFIG environment variable
//  2. ./config.yaml (current directory)
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  app_key: "${APP_KEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
// DATABASE_URL, when set, overrides database.url regardless of the file.
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8081"
//
// Database:
//
//	database:
//	  url: "${DATABASE_URL}"
//
// Authentication:
//
//	auth:
//	  app_key: "${APP_KEY}"   # shared secret for the x-app-key header
//
// Language model:
//
//	model:
//	  host: "http://localhost:11434"
//	  name: "llama3.2"
//
// Telegram bot:
//
//	telegram:
//	  bot_token: "${TELEGRAM_TOKEN}"
//	  bot_name: "ckb_agent"
//	  kyc_link: "https://example.com/kyc"
//	  agent_api_url: "http://localhost:8081"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// ValidateServer() checks http_addr, database.url, app_key, and
// model.name. ValidateBot() checks bot_token, bot_name, agent_api_url,
// and app_key.
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/tgbot/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
