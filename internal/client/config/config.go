// Package config loads settings for the FileKeeper command-line client.
//
// Sources, later ones winning: defaults, an optional JSON file (-c), the
// environment (optionally seeded from a dotenv file given with -e) and
// explicit command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvServer = "FILEKEEPER_SERVER"
	EnvToken  = "FILEKEEPER_TOKEN"
)

type Config struct {
	ServerURL string
	Token     string
	Timeout   time.Duration
}

func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:3000"
	c.Timeout = 30 * time.Second
}

type jsonConfig struct {
	ServerURL string `json:"server_url"`
	Token     string `json:"token"`
	Timeout   string `json:"timeout"`
}

// loadDotEnv is a seam for godotenv.Load.
var loadDotEnv = godotenv.Load

// LoadConfig parses the global flags in args and returns the resulting
// Config together with the arguments left after the flags (the command).
func LoadConfig(args []string, errOut io.Writer) (*Config, []string, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	var (
		jsonFile, envFile string
		server, token     string
		timeout           time.Duration
	)

	fs := flag.NewFlagSet("filekeeper", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&jsonFile, "c", "", "path to JSON config file")
	fs.StringVar(&envFile, "e", "", "path to .env file")
	fs.StringVar(&server, "a", "", "server URL, e.g. http://localhost:3000")
	fs.StringVar(&token, "token", "", "bearer token (or "+EnvToken+")")
	fs.DurationVar(&timeout, "timeout", 0, "request timeout")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if jsonFile != "" {
		if err := cfg.loadJSON(jsonFile); err != nil {
			return nil, nil, err
		}
	}

	if envFile != "" {
		if err := loadDotEnv(envFile); err != nil {
			return nil, nil, fmt.Errorf("load env file: %w", err)
		}
	}
	if v := os.Getenv(EnvServer); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Token = v
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			cfg.ServerURL = server
		case "token":
			cfg.Token = token
		case "timeout":
			cfg.Timeout = timeout
		}
	})

	if cfg.Timeout < 0 {
		return nil, nil, errors.New("timeout must not be negative")
	}

	return cfg, fs.Args(), nil
}

func (c *Config) loadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if jc.ServerURL != "" {
		c.ServerURL = jc.ServerURL
	}
	if jc.Token != "" {
		c.Token = jc.Token
	}
	if jc.Timeout != "" {
		d, err := time.ParseDuration(jc.Timeout)
		if err != nil {
			return fmt.Errorf("parse config file: timeout: %w", err)
		}
		c.Timeout = d
	}
	return nil
}
