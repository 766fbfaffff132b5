package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultDBPath   = "/tmp/mandi_app.db"
	defaultEnvFile  = ".env"
	dbPathEnvVar    = "GRAINFILL_DB_PATH"
	logLevelEnvVar  = "GRAINFILL_LOG_LEVEL"
	defaultLogLevel = "warn"
)

// loadEnvFile merges a dotenv file into the process environment. A missing
// file is not an error, and variables already set keep their values.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

// resolveDBPath picks the database path: positional argument first, then
// GRAINFILL_DB_PATH, then the default.
func resolveDBPath(arg string) string {
	if trimmed := strings.TrimSpace(arg); trimmed != "" {
		return expandHomePath(trimmed)
	}
	if env := strings.TrimSpace(os.Getenv(dbPathEnvVar)); env != "" {
		return expandHomePath(env)
	}
	return defaultDBPath
}

func resolveLogLevel(flagValue string) string {
	if trimmed := strings.TrimSpace(flagValue); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv(logLevelEnvVar)); env != "" {
		return env
	}
	return defaultLogLevel
}

func expandHomePath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return trimmed
		}
		return home
	}
	if !strings.HasPrefix(trimmed, "~/") {
		return trimmed
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return trimmed
	}
	return filepath.Join(home, strings.TrimPrefix(trimmed, "~/"))
}
