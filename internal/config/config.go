// ABOUTME: Configuration loading and parsing for the agent backend
// ABOUTME: Supports YAML files with environment variable expansion

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agent backend configuration.
// It is shared by the API server and the Telegram bot; each binary
// validates only the sections it needs.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Model    ModelConfig    `yaml:"model"`
	Telegram TelegramConfig `yaml:"telegram"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds the Postgres connection string.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds the shared secret expected in the x-app-key header.
type AuthConfig struct {
	AppKey string `yaml:"app_key"`
}

// ModelConfig holds the language model endpoint configuration.
type ModelConfig struct {
	Host string `yaml:"host"` // Ollama base URL, e.g. http://localhost:11434
	Name string `yaml:"name"` // model name passed to the chat endpoint
}

// TelegramConfig holds the bot integration configuration.
type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	BotName     string `yaml:"bot_name"`     // token_address the bot chats as
	KYCLink     string `yaml:"kyc_link"`     // onboarding form sent to new group members
	AgentAPIURL string `yaml:"agent_api_url"` // base URL of the agent API, e.g. http://localhost:8081
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded before parsing,
// so secrets like ${TELEGRAM_TOKEN} and ${DB_PASSWORD} never live in the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// DATABASE_URL always wins over the file, matching how the original
	// deployment injects credentials.
	if envURL := os.Getenv("DATABASE_URL"); envURL != "" {
		cfg.Database.URL = envURL
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// ValidateServer checks the fields the API server requires.
func (c *Config) ValidateServer() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (or set DATABASE_URL)")
	}
	if c.Auth.AppKey == "" {
		return fmt.Errorf("auth.app_key is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	return nil
}

// ValidateBot checks the fields the Telegram bot requires.
func (c *Config) ValidateBot() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.BotName == "" {
		return fmt.Errorf("telegram.bot_name is required")
	}
	if c.Telegram.AgentAPIURL == "" {
		return fmt.Errorf("telegram.agent_api_url is required")
	}
	if c.Auth.AppKey == "" {
		return fmt.Errorf("auth.app_key is required")
	}
	return nil
}
