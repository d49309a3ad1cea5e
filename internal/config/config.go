// Package config loads service configuration from a YAML file with
// environment variable overrides. Credentials are never read from the file:
// SPORTSDB_API_KEY, OPENAI_API_KEY and the Telegram token come from the
// environment only.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	SportsDB SportsDBConfig `mapstructure:"sportsdb"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SportsDBConfig holds TheSportsDB API configuration
type SportsDBConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ScraperConfig holds odds scraping behavior configuration
type ScraperConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	UserAgent      string        `mapstructure:"user_agent"`
	Browser        BrowserConfig `mapstructure:"browser"`
	Model          ModelConfig   `mapstructure:"model"`
}

// BrowserConfig controls the headless-browser fetch strategy
type BrowserConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DynamicHosts []string      `mapstructure:"dynamic_hosts"`
}

// ModelConfig controls language-model-assisted line parsing
type ModelConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Name    string        `mapstructure:"name"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds settlement notification configuration
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("OUSERVICE")
	v.AutomaticEnv()

	// Credentials and the listen port come from well-known unprefixed
	// variables for deployment compatibility.
	_ = v.BindEnv("sportsdb.api_key", "SPORTSDB_API_KEY")
	_ = v.BindEnv("scraper.model.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("server.port", "PORT")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "10s")

	// SportsDB defaults
	v.SetDefault("sportsdb.base_url", "https://www.thesportsdb.com/api/v1/json")
	v.SetDefault("sportsdb.timeout", "30s")
	v.SetDefault("sportsdb.max_retries", 3)
	v.SetDefault("sportsdb.retry_delay_base", "1s")

	// Scraper defaults
	v.SetDefault("scraper.timeout", "45s")
	v.SetDefault("scraper.max_concurrency", 4)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (compatible; ouservice/1.0)")
	v.SetDefault("scraper.browser.enabled", true)
	v.SetDefault("scraper.browser.timeout", "2m")
	v.SetDefault("scraper.browser.dynamic_hosts", []string{"www.espn.com", "espn.com"})
	v.SetDefault("scraper.model.enabled", false)
	v.SetDefault("scraper.model.base_url", "https://api.openai.com/v1")
	v.SetDefault("scraper.model.name", "gpt-4o-mini")
	v.SetDefault("scraper.model.timeout", "60s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.SportsDB.BaseURL == "" {
		return fmt.Errorf("sportsdb.base_url is required")
	}
	if c.SportsDB.APIKey == "" {
		return fmt.Errorf("sportsdb.api_key is required (set SPORTSDB_API_KEY)")
	}
	if c.SportsDB.MaxRetries < 1 {
		return fmt.Errorf("sportsdb.max_retries must be at least 1")
	}
	if c.SportsDB.Timeout < time.Second {
		return fmt.Errorf("sportsdb.timeout must be at least 1 second")
	}

	if c.Scraper.MaxConcurrency < 1 {
		return fmt.Errorf("scraper.max_concurrency must be at least 1")
	}
	if c.Scraper.Timeout < time.Second {
		return fmt.Errorf("scraper.timeout must be at least 1 second")
	}
	if c.Scraper.Model.Enabled {
		if c.Scraper.Model.APIKey == "" {
			return fmt.Errorf("scraper.model.api_key is required when model parsing is enabled (set OPENAI_API_KEY)")
		}
		if c.Scraper.Model.Name == "" {
			return fmt.Errorf("scraper.model.name is required when model parsing is enabled")
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
