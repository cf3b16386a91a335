package config

import (
	"fmt"
	"os"
)

type Config struct {
	Port           string
	DatabaseURL    string
	VerifierURL    string
	VerifierAPIKey string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:           os.Getenv("PORT"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		VerifierURL:    os.Getenv("VERIFIER_URL"),
		VerifierAPIKey: os.Getenv("VERIFIER_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.VerifierURL == "" {
		return nil, fmt.Errorf("VERIFIER_URL is required")
	}

	if cfg.Port == "" {
		cfg.Port = "3000"
	}

	return cfg, nil
}
