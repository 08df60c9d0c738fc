// Package config loads and validates application configuration from a YAML
// file, a .env file and environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "TELEMARKET_"

type Validator interface {
	Validate() error
}

type Config struct {
	Telegram TelegramConfig `koanf:"telegram"`
	Database DatabaseConfig `koanf:"database"`
	Payment  PaymentConfig  `koanf:"payment"`
	Log      LogConfig      `koanf:"log"`
}

type TelegramConfig struct {
	// Token is the bot API token.
	Token string `koanf:"token"`
	// AdminIDs are always allowed to use the admin panel, in addition to
	// chat administrators discovered via /admin in a group.
	AdminIDs []int64 `koanf:"admin_ids"`
	// NotifyChatID receives new-order notifications. Zero disables them.
	NotifyChatID int64 `koanf:"notify_chat_id"`
	Debug        bool  `koanf:"debug"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type PaymentConfig struct {
	ShopID    string `koanf:"shop_id"`
	SecretKey string `koanf:"secret_key"`
	ReturnURL string `koanf:"return_url"`
	// ProviderToken is the Telegram payments provider token used for invoices.
	ProviderToken string `koanf:"provider_token"`
	Currency      string `koanf:"currency"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/telemarket.db"
	}
	if c.Payment.Currency == "" {
		c.Payment.Currency = "RUB"
	}
	if c.Payment.ReturnURL == "" {
		c.Payment.ReturnURL = "https://t.me"
	}
	return c.Log.Validate()
}

func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unknown log level %q", c.Level)
}

// String renders the configuration for startup logging with secrets masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("\n--- Telegram ---\n")
	b.WriteString(fmt.Sprintf("  token: %s\n", mask(c.Telegram.Token)))
	b.WriteString(fmt.Sprintf("  admin_ids: %v\n", c.Telegram.AdminIDs))
	b.WriteString(fmt.Sprintf("  notify_chat_id: %d\n", c.Telegram.NotifyChatID))
	b.WriteString("\n--- Database ---\n")
	b.WriteString(fmt.Sprintf("  path: %s\n", c.Database.Path))
	b.WriteString("\n--- Payment ---\n")
	b.WriteString(fmt.Sprintf("  shop_id: %s\n", c.Payment.ShopID))
	b.WriteString(fmt.Sprintf("  secret_key: %s\n", mask(c.Payment.SecretKey)))
	b.WriteString(fmt.Sprintf("  currency: %s\n", c.Payment.Currency))
	b.WriteString("\n--- Log ---\n")
	b.WriteString(fmt.Sprintf("  level: %s\n", c.Log.Level))
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "<not configured>"
	}
	return "****"
}

// Load reads config.yaml, then .env, then environment variables prefixed with
// TELEMARKET_, unmarshals the result and validates it.
func Load[T Validator](configFile string) (T, error) {
	var cfg T
	k := koanf.New(".")

	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARN: error loading YAML config file '%s': %v", configFile, err)
		}
	}

	// TELEMARKET_TELEGRAM_NOTIFY_CHAT_ID -> telegram.notify_chat_id. The
	// config tree is two levels deep and field names may carry underscores,
	// so only the first underscore separates the section from the field.
	envTransformer := func(key string) string {
		key = strings.ToLower(key)
		key = strings.TrimPrefix(key, strings.ToLower(envPrefix))
		return strings.Replace(key, "_", ".", 1)
	}

	if envFileMap, err := godotenv.Read(".env"); err == nil {
		envMap := make(map[string]any)
		for key, value := range envFileMap {
			envMap[envTransformer(key)] = value
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformer), nil); err != nil {
		log.Printf("WARN: error loading system env vars: %v", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
