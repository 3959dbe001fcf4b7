package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
	"github.com/joho/godotenv"
)

// Environment variables recognised by the server.
const (
	EnvJWTSecret      = "JWT_SECRET"
	EnvDatabaseDSN    = "DATABASE_DSN"
	EnvUploadsDir     = "UPLOADS_DIR"
	EnvLogLevel       = "LOG_LEVEL"
	EnvTokenTTL       = "TOKEN_TTL"
	EnvStorageDriver  = "STORAGE_DRIVER"
	EnvS3RootUser     = "S3_ROOT_USER"
	EnvS3RootPassword = "S3_ROOT_PASSWORD"
	EnvS3Bucket       = "S3_BUCKET"
	EnvS3Region       = "S3_REGION"
	EnvS3BaseEndpoint = "S3_BASE_ENDPOINT"
)

// loadDotEnv is a seam for godotenv.Load.
var loadDotEnv = godotenv.Load

// parseEnv overlays values from the process environment. When -e/-env names
// a dotenv file it is loaded first; godotenv never overrides variables that
// are already set.
func parseEnv(config *Config) error {
	if envFile := flagx.EnvFileFlags(); envFile != "" {
		if err := loadDotEnv(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	setString(&config.SecretKey, os.Getenv(EnvJWTSecret))
	setString(&config.DatabaseDSN, os.Getenv(EnvDatabaseDSN))
	setString(&config.UploadsDir, os.Getenv(EnvUploadsDir))
	setString(&config.LogLevel, os.Getenv(EnvLogLevel))
	setString(&config.StorageDriver, os.Getenv(EnvStorageDriver))
	setString(&config.S3RootUser, os.Getenv(EnvS3RootUser))
	setString(&config.S3RootPassword, os.Getenv(EnvS3RootPassword))
	setString(&config.S3Bucket, os.Getenv(EnvS3Bucket))
	setString(&config.S3Region, os.Getenv(EnvS3Region))
	setString(&config.S3BaseEndpoint, os.Getenv(EnvS3BaseEndpoint))

	if v := os.Getenv(EnvTokenTTL); v != "" {
		ttl, err := parseTTL(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTokenTTL, err)
		}
		config.AccessTokenValidityDuration = ttl
	}
	return nil
}

// parseTTL accepts a Go duration ("45m") or plain seconds ("3600").
func parseTTL(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
