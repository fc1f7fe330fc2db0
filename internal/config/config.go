// Package config loads environment-backed configuration the way the
// teacher's internal/config package does: godotenv first (missing .env is
// a warning, not fatal), then a fixed table of required secrets validated
// with log.Fatalf, then every tunable through getEnv*-style helpers with
// hard defaults. Each component embeds Common and adds its own tunables.
package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Common holds the configuration every one of the five binaries needs:
// how to reach Redis and how to log.
type Common struct {
	RedisAddr     string // REDIS_ADDR
	RedisPassword string // REDIS_PASSWORD
	RedisDB       int    // REDIS_DB
	LogLevel      string // LOG_LEVEL
	LogFile       string // LOG_FILE
	MaxLogSizeMB  int64  // MAX_LOG_SIZE_MB
	MaxLogBackups int    // MAX_LOG_BACKUPS
	DBPath        string // CORE_DB_PATH
}

// requiredSecrets lists the env vars every component must have to start;
// components add their own required names (e.g. the Gateway's venue
// credentials) through LoadCommon's extraRequired argument.
var requiredSecrets = []string{
	"REDIS_ADDR",
}

// LoadCommon reads .env (if present) and populates Common. extraRequired
// names additional env vars this component cannot start without (e.g. the
// Gateway's venue API credentials); missing any of them is fatal.
func LoadCommon(extraRequired ...string) Common {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file found, using system environment variables")
	}

	var missing []string
	for _, key := range append(append([]string{}, requiredSecrets...), extraRequired...) {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		log.Fatalf("CRITICAL: missing required environment variables: %v", missing)
	}

	return Common{
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		MaxLogSizeMB:  getEnvAsInt64("MAX_LOG_SIZE_MB", 50),
		MaxLogBackups: getEnvAsInt("MAX_LOG_BACKUPS", 5),
		DBPath:        getEnv("CORE_DB_PATH", "core.db"),
	}
}
