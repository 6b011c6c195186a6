package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BasicAuth holds HTTP Basic Auth credentials for the API.
type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Enabled reports whether both credentials are set.
func (b BasicAuth) Enabled() bool {
	return b.Username != "" && b.Password != ""
}

// Config keeps runtime settings for the server, bot and CLI.
type Config struct {
	Listen          string    `yaml:"listen"`
	DatabaseURL     string    `yaml:"database_url"`
	TelegramToken   string    `yaml:"telegram_token"`
	AgendaTime      string    `yaml:"agenda_time"`
	AgendaDays      int       `yaml:"agenda_days"`
	MeetingLinkBase string    `yaml:"meeting_link_base"`
	ServerURL       string    `yaml:"server"`
	Timezone        string    `yaml:"timezone"`
	BasicAuth       BasicAuth `yaml:"basic_auth"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Listen:          "127.0.0.1:8080",
		AgendaTime:      "08:00",
		AgendaDays:      7,
		MeetingLinkBase: "https://meet.jit.si",
		ServerURL:       "http://127.0.0.1:8080",
		Timezone:        "UTC",
	}
}

// Load reads configuration. A .env file in the working directory is
// loaded first; then TASKCAL_CONFIG may name a YAML file; environment
// variables override both.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("TASKCAL_CONFIG")); path != "" {
		if err := cfg.readFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()

	if cfg.DatabaseURL == "" {
		path, err := xdg.DataFile("taskcal/taskcal.db")
		if err != nil {
			path = "taskcal.db"
		}
		cfg.DatabaseURL = path
	}
	if cfg.AgendaDays <= 0 {
		cfg.AgendaDays = 7
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Listen, "TASKCAL_LISTEN")
	set(&c.DatabaseURL, "DATABASE_URL")
	set(&c.TelegramToken, "TELEGRAM_TOKEN")
	set(&c.AgendaTime, "AGENDA_TIME")
	set(&c.MeetingLinkBase, "MEETING_LINK_BASE")
	set(&c.ServerURL, "TASKCAL_SERVER")
	set(&c.Timezone, "TIMEZONE")
	set(&c.BasicAuth.Username, "BASIC_AUTH_USER")
	set(&c.BasicAuth.Password, "BASIC_AUTH_PASSWORD")

	if raw := strings.TrimSpace(os.Getenv("AGENDA_DAYS")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.AgendaDays = n
		}
	}
}

// Location resolves Timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
