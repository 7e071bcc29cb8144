package database

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds connection settings for one PostgreSQL database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Connection pool settings
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns a pgx-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LoadConfigFromEnv loads database configuration from environment variables.
// The prefix selects the database, e.g. "LEDGER_DB" for the transactions
// ledger and "CHAT_DB" for the application-owned tables.
func LoadConfigFromEnv(prefix string) (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault(prefix+"_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s_PORT: %w", prefix, err)
	}

	maxConns, _ := strconv.Atoi(getEnvOrDefault(prefix+"_MAX_CONNS", "10"))
	minConns, _ := strconv.Atoi(getEnvOrDefault(prefix+"_MIN_CONNS", "2"))

	return Config{
		Host:            getEnvOrDefault(prefix+"_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault(prefix+"_USER", "ledgerchat"),
		Password:        os.Getenv(prefix + "_PASSWORD"),
		Database:        getEnvOrDefault(prefix+"_NAME", "ledgerchat"),
		SSLMode:         getEnvOrDefault(prefix+"_SSLMODE", "disable"),
		MaxConns:        int32(maxConns),
		MinConns:        int32(minConns),
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
