package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Providers struct {
		AlphaVantage struct {
			APIKey   string        `yaml:"api_key"`
			BaseURL  string        `yaml:"base_url"`
			Interval time.Duration `yaml:"interval"`
		} `yaml:"alpha_vantage"`
		Yahoo struct {
			Hosts []string `yaml:"hosts"`
		} `yaml:"yahoo"`
		// SupplementGrowth asks Yahoo for the analyst estimate after an Alpha Vantage success.
		SupplementGrowth *bool `yaml:"supplement_growth"`
	} `yaml:"providers"`
	Gemini struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"gemini"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
		URL        string `yaml:"url"` // PostgreSQL; takes precedence over SQLite
	} `yaml:"database"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Schedule struct {
		RefreshCron string   `yaml:"refresh_cron"`
		Watchlist   []string `yaml:"watchlist"`
		RunOnStart  bool     `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json or console
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides and defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&c.Providers.AlphaVantage.APIKey, "ALPHA_VANTAGE_API_KEY")
	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "GEMINI_MODEL")
	setString(&c.Database.SQLitePath, "SQLITE_PATH")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Proxy, "HTTPS_PROXY")
	setString(&c.Server.Port, "PORT")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Schedule.RefreshCron, "REFRESH_CRON")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Schedule.Watchlist = splitList(v)
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Schedule.RunOnStart = b
		}
	}
	if v := os.Getenv("SUPPLEMENT_GROWTH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Providers.SupplementGrowth = &b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Providers.AlphaVantage.Interval == 0 {
		c.Providers.AlphaVantage.Interval = 1300 * time.Millisecond
	}
	if c.Providers.SupplementGrowth == nil {
		on := true
		c.Providers.SupplementGrowth = &on
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/fairvalue.db"
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = "0 30 21 * * 1-5"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	watch := c.Schedule.Watchlist[:0]
	for _, s := range c.Schedule.Watchlist {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			watch = append(watch, s)
		}
	}
	c.Schedule.Watchlist = watch
}

// SupplementGrowth reports whether the secondary growth estimate is fetched after a primary success.
func (c *Config) SupplementGrowth() bool {
	return c.Providers.SupplementGrowth == nil || *c.Providers.SupplementGrowth
}

// Validate checks that the loaded values are usable.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("server.port %q is not a valid port", c.Server.Port)
	}
	if c.Providers.AlphaVantage.Interval < 0 {
		return fmt.Errorf("providers.alpha_vantage.interval must not be negative")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format %q must be json or console", c.Logging.Format)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Schedule.RefreshCron); err != nil {
		return fmt.Errorf("schedule.refresh_cron: %w", err)
	}
	return nil
}

func splitList(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
}
