// Package config loads application configuration from environment
// variables.  An optional .env file in the working directory is read first;
// variables already present in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingEnv is returned by Load when a required variable is unset.
var ErrMissingEnv = errors.New("missing required env var")

// Store backends.
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// Config holds all runtime configuration values.
type Config struct {
	Env  string // dev, test or prod
	Port string

	Store  string // memory or mysql
	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	JWTSecret   string
	JWTIssuer   string // empty disables the iss claim and its check
	JWTAudience string // empty disables the aud claim and its check
	BcryptCost  int

	Seed bool // create the default roles and users at startup

	AMQPURL       string // empty disables audit events
	AuditConsumer bool
	LogDir        string

	CORSAllowOrigins []string // "*" allows any origin

	RateLimit RateLimitConfig
}

// Load reads the configuration.  A missing .env file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:           getenv("APP_ENV", "dev"),
		Port:          getenv("APP_PORT", "8080"),
		Store:         strings.ToLower(getenv("STORE", StoreMemory)),
		JWTSecret:     must("JWT_SECRET"),
		JWTIssuer:     os.Getenv("JWT_ISSUER"),
		JWTAudience:   os.Getenv("JWT_AUDIENCE"),
		BcryptCost:    envInt("BCRYPT_COST", 10),
		Seed:          envBool("SEED", true),
		AMQPURL:       os.Getenv("AMQP_URL"),
		AuditConsumer: envBool("AUDIT_CONSUMER_ENABLED", true),
		LogDir:        getenv("LOG_DIR", "logs"),
		RateLimit:     LoadRateLimitConfig(),
	}
	cfg.CORSAllowOrigins = splitList(getenv("CORS_ALLOW_ORIGINS", "*"))

	switch cfg.Store {
	case StoreMemory:
	case StoreMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = getenv("DB_HOST", "127.0.0.1")
		cfg.DBPort = getenv("DB_PORT", "3306")
		cfg.DBName = must("DB_NAME")
	default:
		return Config{}, fmt.Errorf("unknown STORE %q", cfg.Store)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	return cfg, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
