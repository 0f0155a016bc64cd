package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/glabrego/reeder/internal/logging"
)

const (
	defaultDBPath      = "reeder.db"
	defaultLocale      = "en-US"
	defaultSearchLimit = 200
)

// Config holds runtime settings for the CLI app.
type Config struct {
	DBPath      string `yaml:"db_path"`
	Locale      string `yaml:"locale"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	SearchLimit int    `yaml:"search_limit"`
}

func defaults() Config {
	return Config{
		DBPath:      defaultDBPath,
		Locale:      defaultLocale,
		LogLevel:    "info",
		LogFormat:   "text",
		SearchLimit: defaultSearchLimit,
	}
}

// Load reads configuration with precedence:
// 1. Environment variables
// 2. ./.env.local (dotenv)
// 3. ~/.config/reeder/config.yaml (YAML)
func Load() (Config, error) {
	yamlPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		yamlPath = filepath.Join(home, ".config", "reeder", "config.yaml")
	}
	return LoadFiles(yamlPath, ".env.local")
}

// LoadFromEnv ignores config files.
func LoadFromEnv() (Config, error) {
	return LoadFiles("", "")
}

// LoadFiles is Load with explicit file locations. Missing files are skipped.
func LoadFiles(yamlPath, envPath string) (Config, error) {
	cfg := defaults()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", yamlPath, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read %s: %w", yamlPath, err)
		}
	}

	dotenv := map[string]string{}
	if envPath != "" {
		values, err := godotenv.Read(envPath)
		switch {
		case err == nil:
			dotenv = values
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("read %s: %w", envPath, err)
		}
	}
	get := func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}

	if v := get("REEDER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := get("REEDER_LOCALE"); v != "" {
		cfg.Locale = v
	}
	if v := get("REEDER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := get("REEDER_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := get("REEDER_SEARCH_LIMIT"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("REEDER_SEARCH_LIMIT must be an integer: %s", v)
		}
		cfg.SearchLimit = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("DBPath is required")
	}
	if _, err := c.Language(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		return fmt.Errorf("LogFormat must be text or json: %s", c.LogFormat)
	}
	if c.SearchLimit < -1 {
		return fmt.Errorf("SearchLimit must be -1 or greater: %d", c.SearchLimit)
	}
	return nil
}

// Language returns the collation locale.
func (c Config) Language() (language.Tag, error) {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.Und, fmt.Errorf("invalid locale %q: %w", c.Locale, err)
	}
	return tag, nil
}
