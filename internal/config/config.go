/*
Package config reads the service configuration from the environment.
A .env file in the working directory is loaded automatically when present.
*/
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"
)

const (
	defaultPort         = 8080
	defaultCacheSize    = 256
	defaultRateLimitRPS = 20
)

// Database holds the Postgres connection settings.
type Database struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	Schema   string
}

// ConnString builds the pgx connection URL.
func (d Database) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.Username, d.Password),
		Host:   fmt.Sprintf("%s:%s", d.Host, d.Port),
		Path:   d.Name,
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	if d.Schema != "" {
		q.Set("search_path", d.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Config is the runtime configuration of the API server.
type Config struct {
	Env    string
	Port   int
	AppURL string

	Database Database

	// SessionSecret signs the OAuth session cookie.
	SessionSecret      string
	GoogleClientID     string
	GoogleClientSecret string

	// RedisAddr enables the Redis rewards store when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CacheSize    int
	RateLimitRPS float64
}

// IsProduction reports whether APP_ENV is "production".
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// GoogleFitEnabled reports whether the OAuth credentials are present.
func (c Config) GoogleFitEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.AppURL != ""
}

// Load reads the configuration. Missing or malformed optional values
// fall back to their defaults.
func Load() Config {
	port := atoi(os.Getenv("PORT"), defaultPort)
	if port <= 0 {
		port = defaultPort
	}

	return Config{
		Env:    getenv("APP_ENV", "development"),
		Port:   port,
		AppURL: strings.TrimRight(getenv("APP_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		Database: Database{
			Host:     getenv("BLUEPRINT_DB_HOST", "localhost"),
			Port:     getenv("BLUEPRINT_DB_PORT", "5432"),
			Username: getenv("BLUEPRINT_DB_USERNAME", "postgres"),
			Password: os.Getenv("BLUEPRINT_DB_PASSWORD"),
			Name:     getenv("BLUEPRINT_DB_DATABASE", "fitgent_db"),
			Schema:   getenv("BLUEPRINT_DB_SCHEMA", "public"),
		},
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            atoi(os.Getenv("REDIS_DB"), 0),
		CacheSize:          positive(atoi(os.Getenv("CACHE_SIZE"), defaultCacheSize), defaultCacheSize),
		RateLimitRPS:       positiveFloat(os.Getenv("RATE_LIMIT_RPS"), defaultRateLimitRPS),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

func positive(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func positiveFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}
