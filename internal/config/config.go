package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RetentionConfig tunes the version retention policy. Operators override the
// defaults through a yaml policy file, not individual env vars, so the three
// lineages always share one rule set.
type RetentionConfig struct {
	AutoKeep int `yaml:"auto_keep"`
	PinLimit int `yaml:"pin_limit"`

	// SequenceRetries bounds the version-number allocation retry loop.
	SequenceRetries int `yaml:"sequence_retries"`
}

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	JWKSURL     string
	CORSOrigins string
	TablePrefix string
	LogDir      string

	// AutoMigrate runs schema setup on boot. Meant for dev and test
	// environments; production schemas are managed externally.
	AutoMigrate bool

	// AuthDisabled skips bearer-token verification. Local development only.
	AuthDisabled bool

	Retention RetentionConfig
}

func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "dev")

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		Environment:  env,
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		JWKSURL:      getEnv("JWKS_URL", ""),
		CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:  getTablePrefix(env),
		LogDir:       getEnv("LOG_DIR", ""),
		AutoMigrate:  getEnv("AUTO_MIGRATE", defaultForEnv(env)) == "true",
		AuthDisabled: getEnv("AUTH_DISABLED", defaultForEnv(env)) == "true",
		Retention: RetentionConfig{
			AutoKeep:        5,
			PinLimit:        2,
			SequenceRetries: 3,
		},
	}

	if path := os.Getenv("POLICY_FILE"); path != "" {
		if err := loadPolicyFile(path, &cfg.Retention); err != nil {
			return nil, err
		}
	}
	if cfg.Retention.AutoKeep < 1 {
		return nil, fmt.Errorf("retention auto_keep must be at least 1, got %d", cfg.Retention.AutoKeep)
	}
	if cfg.Retention.PinLimit < 0 {
		return nil, fmt.Errorf("retention pin_limit cannot be negative, got %d", cfg.Retention.PinLimit)
	}
	if cfg.Retention.SequenceRetries < 1 {
		return nil, fmt.Errorf("retention sequence_retries must be at least 1, got %d", cfg.Retention.SequenceRetries)
	}

	return cfg, nil
}

// loadPolicyFile overlays retention settings from a yaml file. Fields absent
// from the file keep their defaults.
func loadPolicyFile(path string, out *RetentionConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}
	var doc struct {
		Retention RetentionConfig `yaml:"retention"`
	}
	doc.Retention = *out
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse policy file %s: %w", path, err)
	}
	*out = doc.Retention
	return nil
}

// defaultForEnv enables dev conveniences outside production
func defaultForEnv(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
