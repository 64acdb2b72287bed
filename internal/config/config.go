// Package config provides application configuration through environment
// variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// AWSRegion overrides the SDK's region resolution when set.
	AWSRegion string
	// SecretsManagerEndpoint overrides the Secrets Manager endpoint, for
	// VPC interface endpoints or LocalStack.
	SecretsManagerEndpoint string
	// AWSAccessKeyID and AWSSecretAccessKey are static credentials for
	// local testing only; empty in production.
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// AuthTokenPollInterval is the wait between checks while an auth token
	// modification is pending on the replication group.
	AuthTokenPollInterval time.Duration

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	loadDotEnv()

	return &Config{
		AWSRegion:              env.GetString("AWS_REGION", ""),
		SecretsManagerEndpoint: env.GetString("SECRETS_MANAGER_ENDPOINT", ""),
		AWSAccessKeyID:         env.GetString("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:     env.GetString("AWS_SECRET_ACCESS_KEY", ""),
		AuthTokenPollInterval:  env.GetDuration("AUTH_TOKEN_POLL_INTERVAL_SECONDS", 5, time.Second),
		LogLevel:               env.GetString("LOG_LEVEL", "info"),
	}
}

// loadDotEnv searches for a .env file from the current directory up to the
// root and loads the first one found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
