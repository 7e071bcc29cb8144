// Package config holds environment-driven application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// TransactionColumns enumerates the columns of the ledger's transactions table.
// The list is embedded into SQL-generation prompts so the model only references
// columns that actually exist.
var TransactionColumns = []string{
	"transaction_id",
	"user_id",
	"event_type",
	"tx_status",
	"fiat_amount",
	"fiat_currency",
	"crypto_amount",
	"crypto_token",
	"timestamp",
}

// Config is the top-level application configuration.
type Config struct {
	HTTPPort string

	// AgentTimeout bounds every LLM agent call.
	AgentTimeout time.Duration
	// DatabaseTimeout bounds every query against the ledger database.
	DatabaseTimeout time.Duration
	// MaxQueryResults caps row counts for generated queries (LIMIT injection).
	MaxQueryResults int

	// OpenAI agent backend.
	OpenAIAPIKey string
	OpenAIModel  string
}

// LoadFromEnv builds a Config from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	agentTimeout, err := durationFromEnv("AI_AGENT_TIMEOUT_SECONDS", 30*time.Second)
	if err != nil {
		return nil, err
	}
	dbTimeout, err := durationFromEnv("DATABASE_TIMEOUT_SECONDS", 10*time.Second)
	if err != nil {
		return nil, err
	}

	maxResults := 1000
	if v := os.Getenv("MAX_QUERY_RESULTS"); v != "" {
		maxResults, err = strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_QUERY_RESULTS: %w", err)
		}
		if maxResults <= 0 {
			return nil, fmt.Errorf("MAX_QUERY_RESULTS must be positive, got %d", maxResults)
		}
	}

	return &Config{
		HTTPPort:        getEnvOrDefault("HTTP_PORT", "8080"),
		AgentTimeout:    agentTimeout,
		DatabaseTimeout: dbTimeout,
		MaxQueryResults: maxResults,
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}, nil
}

func durationFromEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
