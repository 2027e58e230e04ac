package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Telegram     TelegramConfig `yaml:"telegram"`
	Channels     []string       `yaml:"channels"`
	KeywordsFile string         `yaml:"keywords_file"`
	Classifier   struct {
		SentimentURL   string `yaml:"sentiment_url"`
		TagURL         string `yaml:"tag_url"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
	} `yaml:"classifier"`
	Ingest struct {
		ChannelDelaySeconds int64 `yaml:"channel_delay_seconds"`
		PollIntervalSeconds int64 `yaml:"poll_interval_seconds"`
	} `yaml:"ingest"`
	Enrich struct {
		Channels    []string `yaml:"channels"`
		MinUnixTime int64    `yaml:"min_unix_time"`
		MaxRows     int64    `yaml:"max_rows"`
	} `yaml:"enrich"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// TelegramConfig holds the MTProto credentials and session location.
type TelegramConfig struct {
	APIID       int    `yaml:"api_id"`
	APIHash     string `yaml:"api_hash"`
	Phone       string `yaml:"phone"`
	SessionFile string `yaml:"session_file"`
}

// LoadConfig reads configuration from the specified YAML file. A .env file,
// if present, and environment variables override the credential and
// connection fields so secrets can stay out of the YAML.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	applyEnvOverrides(config)
	applyDefaults(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		config.Database.URL = v
	}
	if v := os.Getenv("TELEGRAM_API_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			config.Telegram.APIID = id
		}
	}
	if v := os.Getenv("TELEGRAM_API_HASH"); v != "" {
		config.Telegram.APIHash = v
	}
	if v := os.Getenv("TELEGRAM_PHONE"); v != "" {
		config.Telegram.Phone = v
	}
}

func applyDefaults(config *Config) {
	if config.Telegram.SessionFile == "" {
		config.Telegram.SessionFile = "session.json"
	}
	if config.Classifier.TimeoutSeconds == 0 {
		config.Classifier.TimeoutSeconds = 60
	}
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}
