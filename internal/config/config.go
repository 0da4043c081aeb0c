package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	// DataDir is where custom characters and settings live.
	DataDir string
	// ModelTimeout bounds a single model call.
	ModelTimeout time.Duration
	// CandidateCount is the board size for a new game.
	CandidateCount int
	// Debug enables verbose logging.
	Debug bool
}

// LoadConfig loads the configuration from environment variables, reading a
// .env file first when one is present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:        ".guesswho",
		ModelTimeout:   20 * time.Second,
		CandidateCount: 5,
	}

	if dir := os.Getenv("GUESSWHO_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if raw := os.Getenv("GUESSWHO_MODEL_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid GUESSWHO_MODEL_TIMEOUT_SECONDS: %q", raw)
		}
		cfg.ModelTimeout = time.Duration(secs) * time.Second
	}
	if raw := os.Getenv("GUESSWHO_CANDIDATES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 2 {
			return nil, fmt.Errorf("invalid GUESSWHO_CANDIDATES: %q", raw)
		}
		cfg.CandidateCount = n
	}
	if raw := os.Getenv("GUESSWHO_DEBUG"); raw != "" {
		cfg.Debug, _ = strconv.ParseBool(raw)
	}

	return cfg, nil
}
