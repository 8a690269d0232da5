// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr     string
	DBPath         string
	PullInterval   time.Duration
	ViewerInterval time.Duration

	// SecretKey is the AES-256 key for connection tokens at rest. Nil stores
	// tokens unencrypted.
	SecretKey []byte

	// GitHub* describe a connection created at startup when none is stored.
	GitHubToken string
	GitHubURL   string
	GitHubOrgs  []string
}

// HasBootstrapConnection reports whether a GitHub token was provided in the
// environment.
func (c *Config) HasBootstrapConnection() bool {
	return c.GitHubToken != ""
}

// Load reads an optional .env file from the working directory and then the
// environment. Variables already set in the environment win over the file.
//
// All variables are optional: PULLDASH_LISTEN_ADDR (127.0.0.1:8080),
// PULLDASH_DB_PATH (pulldash.db), PULLDASH_PULL_INTERVAL (5m),
// PULLDASH_VIEWER_INTERVAL (1h), PULLDASH_SECRET_KEY (64 hex characters),
// PULLDASH_GITHUB_TOKEN, PULLDASH_GITHUB_URL and PULLDASH_GITHUB_ORGS
// (comma separated).
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path. A missing file is ignored.
func LoadFile(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	pullInterval, err := durationEnv("PULLDASH_PULL_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	viewerInterval, err := durationEnv("PULLDASH_VIEWER_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	var secretKey []byte
	if v := os.Getenv("PULLDASH_SECRET_KEY"); v != "" {
		secretKey, err = hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("PULLDASH_SECRET_KEY must be hex encoded: %w", err)
		}
		if len(secretKey) != 32 {
			return nil, fmt.Errorf("PULLDASH_SECRET_KEY must be 64 hex characters (32 bytes), got %d bytes", len(secretKey))
		}
	}

	var orgs []string
	for _, org := range strings.Split(os.Getenv("PULLDASH_GITHUB_ORGS"), ",") {
		if org = strings.TrimSpace(org); org != "" {
			orgs = append(orgs, org)
		}
	}

	return &Config{
		ListenAddr:     stringEnv("PULLDASH_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:         stringEnv("PULLDASH_DB_PATH", "pulldash.db"),
		PullInterval:   pullInterval,
		ViewerInterval: viewerInterval,
		SecretKey:      secretKey,
		GitHubToken:    strings.TrimSpace(os.Getenv("PULLDASH_GITHUB_TOKEN")),
		GitHubURL:      strings.TrimSpace(os.Getenv("PULLDASH_GITHUB_URL")),
		GitHubOrgs:     orgs,
	}, nil
}

func stringEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
