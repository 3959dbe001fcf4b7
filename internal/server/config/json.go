package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Empty
// or zero fields leave the current value alone.
type JsonConfig struct {
	EndpointAddrHTTP            string   `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string   `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string   `json:"database_dsn"`
	SecretKey                   string   `json:"secret_key"`
	AccessTokenValidityDuration Duration `json:"access_token_validity_duration"`
	UploadsDir                  string   `json:"uploads_dir"`
	MaxUploadBytes              int64    `json:"max_upload_bytes"`
	LogLevel                    string   `json:"log_level"`
	UserCacheSize               *int     `json:"user_cache_size"`
	UserCacheTTL                Duration `json:"user_cache_ttl"`
	StorageDriver               string   `json:"storage_driver"`
	S3RootUser                  string   `json:"s3_root_user"`
	S3RootPassword              string   `json:"s3_root_password"`
	S3Bucket                    string   `json:"s3_bucket"`
	S3Region                    string   `json:"s3_region"`
	S3BaseEndpoint              string   `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c/-config, if any, into config.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.UploadsDir, c.UploadsDir)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.StorageDriver, c.StorageDriver)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.UserCacheTTL.Duration > 0 {
		config.UserCacheTTL = c.UserCacheTTL.Duration
	}
	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	if c.UserCacheSize != nil {
		config.UserCacheSize = *c.UserCacheSize
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
