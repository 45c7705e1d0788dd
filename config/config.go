package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every runtime parameter the server needs.
type Config struct {
	DatabaseURL    string
	MigrationsPath string
	ServerPort     int

	JWTSecretKey string
	TimingAPIKey string

	ChallongeBaseURL string
	ChallongeUser    string
	ChallongeAPIKey  string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		MigrationsPath:    envOr("MIGRATIONS_PATH", "migrations"),
		JWTSecretKey:      os.Getenv("JWT_SECRET_KEY"),
		TimingAPIKey:      os.Getenv("TIMING_API_KEY"),
		ChallongeBaseURL:  envOr("CHALLONGE_BASE_URL", "https://api.challonge.com/v1"),
		ChallongeUser:     os.Getenv("CHALLONGE_USERNAME"),
		ChallongeAPIKey:   os.Getenv("CHALLONGE_API_KEY"),
		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}
	if cfg.TimingAPIKey == "" {
		return nil, fmt.Errorf("TIMING_API_KEY environment variable is not set")
	}
	if cfg.ChallongeUser == "" || cfg.ChallongeAPIKey == "" {
		return nil, fmt.Errorf("CHALLONGE_USERNAME and CHALLONGE_API_KEY environment variables are not set")
	}

	portStr := envOr("SERVER_PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}
	cfg.ServerPort = port

	return cfg, nil
}

// R2Configured reports whether photo storage credentials are present.
// The server runs without them; photo uploads just return an error.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
