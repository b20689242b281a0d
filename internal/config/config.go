package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Dan9191/bureau-scoring/internal/rejection"
)

// Config holds application configuration
type Config struct {
	Port             string
	LogLevel         string
	DBConn           string
	BureauURL        string
	BureauClientID   string
	BureauSigningKey string
	BureauTimeout    time.Duration
	CoefficientsPath string
	ScoreCacheTTL    time.Duration
	CacheSweep       string
	SubjectHashKey   string
	Policy           rejection.Policy
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		DBConn:           getEnv("DB_CONN", ""),
		BureauURL:        getEnv("BUREAU_URL", "http://localhost:9090"),
		BureauClientID:   getEnv("BUREAU_CLIENT_ID", "bureau-scoring"),
		BureauSigningKey: getEnv("BUREAU_SIGNING_KEY", "d2c7a1f0b9e84c53a6f1e0d9c8b7a6f5"),
		CoefficientsPath: getEnv("COEFFICIENTS_PATH", ""),
		CacheSweep:       getEnv("CACHE_SWEEP_SCHEDULE", "@every 5m"),
		SubjectHashKey:   getEnv("SUBJECT_HASH_KEY", "4f1e9a7c2b6d8e0f3a5c7e9b1d3f5a7c"),
	}

	var err error
	if cfg.BureauTimeout, err = getDuration("BUREAU_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ScoreCacheTTL, err = getDuration("SCORE_CACHE_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Policy.RejectHistoricalBadRating, err = getBool("REJECT_HISTORICAL_BAD_RATING", false); err != nil {
		return nil, err
	}
	if cfg.Policy.Deceased, err = rejection.ParseDeceasedPolicy(getEnv("DECEASED_POLICY", "reject")); err != nil {
		return nil, fmt.Errorf("DECEASED_POLICY: %w", err)
	}

	if cfg.BureauURL == "" {
		return nil, fmt.Errorf("BUREAU_URL is required")
	}
	if cfg.BureauSigningKey == "" {
		return nil, fmt.Errorf("BUREAU_SIGNING_KEY is required")
	}
	if cfg.SubjectHashKey == "" {
		return nil, fmt.Errorf("SUBJECT_HASH_KEY is required")
	}
	if len(cfg.SubjectHashKey) > 64 {
		return nil, fmt.Errorf("SUBJECT_HASH_KEY must be at most 64 bytes")
	}
	if cfg.BureauTimeout <= 0 {
		return nil, fmt.Errorf("BUREAU_TIMEOUT must be positive")
	}
	if cfg.ScoreCacheTTL <= 0 {
		return nil, fmt.Errorf("SCORE_CACHE_TTL must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, defaultVal bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
