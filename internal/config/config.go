// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// SECRequestCeiling is the SEC's published fair-access limit in requests
// per second. EDGAR_MAX_RPS can only lower it.
const SECRequestCeiling = 10

// Config holds application configuration
type Config struct {
	DataDir   string // Base directory for the cache database (always absolute)
	UserAgent string // SEC EDGAR identity header: "CompanyName contact@company.com"
	LogLevel  string
	Port      int
	DevMode   bool

	// Rate limiting. The SEC publishes a hard 10 requests/second ceiling;
	// these exist so tests and constrained environments can lower it.
	MaxRequestsPerSecond int
	AdaptiveRateLimit    bool

	// Retry policy for EDGAR requests
	MaxRetries     int
	RequestTimeout int // seconds

	Backup *BackupConfig
}

// BackupConfig holds S3-compatible backup configuration.
// All fields empty means backups are disabled.
type BackupConfig struct {
	AccountID       string // Cloudflare R2 account id (empty for plain S3)
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Retention       int // days to retain old backups
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("MSCAN_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".mscan")
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:              absDataDir,
		UserAgent:            getEnv("EDGAR_USER_AGENT", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		Port:                 getEnvAsInt("GO_PORT", 8002),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		MaxRequestsPerSecond: getEnvAsInt("EDGAR_MAX_RPS", SECRequestCeiling),
		AdaptiveRateLimit:    getEnvAsBool("EDGAR_ADAPTIVE_RATE", true),
		MaxRetries:           getEnvAsInt("EDGAR_MAX_RETRIES", 3),
		RequestTimeout:       getEnvAsInt("EDGAR_REQUEST_TIMEOUT", 30),
		Backup:               loadBackupConfig(),
	}

	// The ceiling belongs to the SEC, not to us; only lowering is allowed
	if cfg.MaxRequestsPerSecond > SECRequestCeiling {
		cfg.MaxRequestsPerSecond = SECRequestCeiling
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present.
// The SEC rejects requests without an identifying User-Agent containing a
// contact address, so a malformed value is a fatal configuration error.
func (c *Config) Validate() error {
	if c.UserAgent == "" {
		return fmt.Errorf("EDGAR_USER_AGENT is required per SEC guidelines (format: \"CompanyName contact@company.com\")")
	}
	if !strings.Contains(c.UserAgent, "@") {
		return fmt.Errorf("EDGAR_USER_AGENT must include a contact email per SEC guidelines, got %q", c.UserAgent)
	}
	if c.MaxRequestsPerSecond <= 0 {
		return fmt.Errorf("EDGAR_MAX_RPS must be positive, got %d", c.MaxRequestsPerSecond)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("EDGAR_MAX_RETRIES must be at least 1, got %d", c.MaxRetries)
	}
	if c.RequestTimeout < 1 {
		return fmt.Errorf("EDGAR_REQUEST_TIMEOUT must be at least 1 second, got %d", c.RequestTimeout)
	}
	return nil
}

// BackupEnabled reports whether S3/R2 backup credentials are configured.
func (c *Config) BackupEnabled() bool {
	b := c.Backup
	return b != nil && b.AccessKeyID != "" && b.SecretAccessKey != "" && b.Bucket != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		Bucket:          getEnv("R2_BUCKET_NAME", ""),
		Retention:       getEnvAsInt("R2_BACKUP_RETENTION", 7),
	}
}
