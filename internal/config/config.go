// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBigQuery = "bigquery"
)

type Config struct {
	// HTTP Server
	Port string

	// Identity
	UserID string

	// Storage
	StoreBackend    string
	DatabaseURL     string
	BigQueryProject string
	BigQueryDataset string

	// Preference cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// Receipts
	GCSBucket string

	// Completion
	GeminiAPIKey string
	GeminiModel  string
	ContextLimit int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Notion
	NotionToken        string
	NotionGoalsDB      string
	NotionSyncSchedule string

	// Logging
	LogLevel  string
	LogFormat string

	// SeedDemo fills the in-memory store with generated data on start.
	SeedDemo bool
}

// LoadEnvFiles reads .env files into the environment. Missing files are
// ignored; variables already set win.
func LoadEnvFiles(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

func Load() *Config {
	return &Config{
		Port:   getEnv("PORT", "8080"),
		UserID: getEnv("USER_ID", "default_user"),

		StoreBackend:    getEnv("STORE_BACKEND", BackendMemory),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		BigQueryProject: getEnv("BIGQUERY_PROJECT", ""),
		BigQueryDataset: getEnv("BIGQUERY_DATASET", "finance_assistant"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisTTL:      getEnvDuration("REDIS_TTL", 10*time.Minute),

		GCSBucket: getEnv("GCS_BUCKET", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		ContextLimit: getEnvInt("CONTEXT_LIMIT", 10),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finance_assistant"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "receipt_analysis"),

		NotionToken:        getEnv("NOTION_TOKEN", ""),
		NotionGoalsDB:      getEnv("NOTION_GOALS_DB", ""),
		NotionSyncSchedule: getEnv("NOTION_SYNC_SCHEDULE", "@every 1h"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		SeedDemo:  getEnvBool("SEED_DEMO", false),
	}
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.UserID) == "" {
		errors = append(errors, "user id cannot be empty")
	}

	validBackends := []string{BackendMemory, BackendPostgres, BackendBigQuery}
	if !slices.Contains(validBackends, c.StoreBackend) {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}
	if c.StoreBackend == BackendPostgres && c.DatabaseURL == "" {
		errors = append(errors, "DATABASE_URL is required when using postgres backend")
	}
	if c.StoreBackend == BackendBigQuery && c.BigQueryProject == "" {
		errors = append(errors, "BIGQUERY_PROJECT is required when using bigquery backend")
	}

	if c.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("invalid redis db %d: must not be negative", c.RedisDB))
	}

	if c.ContextLimit < 1 || c.ContextLimit > 100 {
		errors = append(errors, fmt.Sprintf("invalid context limit %d: must be between 1 and 100", c.ContextLimit))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.LogFormat != logger.FormatConsole && c.LogFormat != logger.FormatJSON {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be '%s' or '%s'", c.LogFormat, logger.FormatConsole, logger.FormatJSON))
	}

	if c.NotionToken != "" {
		if c.NotionGoalsDB == "" {
			errors = append(errors, "NOTION_GOALS_DB is required when NOTION_TOKEN is provided")
		}
		if _, err := cron.ParseStandard(c.NotionSyncSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid notion sync schedule '%s': %v", c.NotionSyncSchedule, err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
