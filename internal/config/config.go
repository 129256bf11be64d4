package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/movie-library-api/internal/database"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser            string
	DBPass            string // may be empty
	DBHost            string
	DBPort            string
	DBName            string
	DBMaxOpenConns    int           // hard upper bound of the shared pool
	DBMaxIdleConns    int           // idle connections kept warm
	DBConnMaxLifetime time.Duration // recycle connections after this long
	DBAcquireTimeout  time.Duration // how long a request may wait for a connection
	DBSQLMode         string        // session sql_mode applied to every lease
	DBTimeZone        string        // session time_zone applied to every lease

	JWTSecret    string // secret used to sign JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	LogLevel    string   // debug, info, warn, error
	LogFormat   string   // text, json or auto
	CORSOrigins []string // allowed origins; "*" by default
	AMQPURL     string   // RabbitMQ URL; empty disables domain events
}

// Load reads a .env file when one exists, then builds a Config from the
// environment.  Every missing or malformed required variable is reported in
// the returned error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var l loader
	cfg := Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: l.must("PORT"),

		DBUser:            l.must("DB_USER"),
		DBPass:            os.Getenv("DB_PASSWORD"),
		DBHost:            l.must("DB_HOST"),
		DBPort:            envStr("DB_PORT", "3306"),
		DBName:            l.must("DB_NAME"),
		DBMaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 10),
		DBConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBAcquireTimeout:  envDur("DB_ACQUIRE_TIMEOUT", 3*time.Second),
		DBSQLMode:         envStr("DB_SQL_MODE", "TRADITIONAL"),
		DBTimeZone:        envStr("DB_TIME_ZONE", "-08:00"),

		JWTSecret:    l.must("JWT_KEY"),
		AccessTTLMin: l.intOr("ACCESS_TOKEN_TTL_MIN", 24*60),
		BcryptCost:   l.intOr("BCRYPT_COST", 10),

		LogLevel:    envStr("LOG_LEVEL", "info"),
		LogFormat:   envStr("LOG_FORMAT", "auto"),
		CORSOrigins: splitList(envStr("CORS_ALLOW_ORIGINS", "*")),
		AMQPURL:     os.Getenv("AMQP_URL"),
	}
	if cfg.DBMaxOpenConns < 1 {
		cfg.DBMaxOpenConns = 1
	}
	if cfg.DBMaxIdleConns > cfg.DBMaxOpenConns {
		cfg.DBMaxIdleConns = cfg.DBMaxOpenConns
	}
	if cfg.AccessTTLMin < 1 {
		l.errs = append(l.errs, fmt.Errorf("ACCESS_TOKEN_TTL_MIN must be positive, got %d", cfg.AccessTTLMin))
	}
	if err := cfg.Session().Validate(); err != nil {
		l.errs = append(l.errs, fmt.Errorf("DB_SQL_MODE/DB_TIME_ZONE: %w", err))
	}
	return cfg, errors.Join(l.errs...)
}

// Session is the per-connection setup applied to every leased connection.
func (c Config) Session() database.Session {
	return database.Session{SQLMode: c.DBSQLMode, TimeZone: c.DBTimeZone}
}

// AccessTTL is the token lifetime as a duration.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMin) * time.Minute
}

// LoadDB loads the subset needed by commands that only touch the database
// (migrations).  JWT and port settings are not required for those.
func LoadDB() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var l loader
	cfg := Config{
		DBUser:            l.must("DB_USER"),
		DBPass:            os.Getenv("DB_PASSWORD"),
		DBHost:            l.must("DB_HOST"),
		DBPort:            envStr("DB_PORT", "3306"),
		DBName:            l.must("DB_NAME"),
		DBMaxOpenConns:    1,
		DBMaxIdleConns:    1,
		DBConnMaxLifetime: time.Minute,
		LogLevel:          envStr("LOG_LEVEL", "info"),
		LogFormat:         envStr("LOG_FORMAT", "auto"),
	}
	return cfg, errors.Join(l.errs...)
}

// loader collects errors for required variables instead of exiting on the
// first one.
type loader struct{ errs []error }

// must retrieves the value of a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		l.errs = append(l.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

// intOr is like envInt but reports malformed values instead of silently
// falling back.
func (l *loader) intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid int for %s: %q", key, s))
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
