// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DBUser         string
	DBPass         string
	DBHost         string
	DBPort         string
	DBName         string
	DBQueryTimeout time.Duration

	JWTSecret string

	Redis     RedisConfig
	Cache     CacheConfig
	Booking   BookingConfig
	Events    EventsConfig
	RateLimit RateLimitConfig
}

// BookingConfig bounds what a single reservation may ask for.
type BookingConfig struct {
	MaxPartySize int
	MaxDaysAhead int
}

// EventsConfig selects where reservation events are published.
type EventsConfig struct {
	Broker       string
	RabbitMQURL  string
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
	return Config{
		Env:      must("APP_ENV"),
		Port:     must("APP_PORT"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		DBQueryTimeout: envDur("DB_QUERY_TIMEOUT", 5*time.Second),

		JWTSecret: must("JWT_SECRET"),

		Redis:     LoadRedisConfig(),
		Cache:     LoadCacheConfig(),
		Booking:   LoadBookingConfig(),
		Events:    LoadEventsConfig(),
		RateLimit: LoadRateLimitConfig(),
	}
}

// LoadDatabase reads only what a database connection needs; the migrate
// command uses it so it can run without JWT or broker settings.
func LoadDatabase() Config {
	return Config{
		LogLevel:       getenv("LOG_LEVEL", "info"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		DBQueryTimeout: envDur("DB_QUERY_TIMEOUT", 5*time.Second),
	}
}

func LoadBookingConfig() BookingConfig {
	b := BookingConfig{
		MaxPartySize: envInt("BOOKING_MAX_PARTY_SIZE", 100),
		MaxDaysAhead: envInt("BOOKING_MAX_DAYS_AHEAD", 30),
	}
	if b.MaxPartySize < 1 {
		b.MaxPartySize = 1
	}
	if b.MaxDaysAhead < 0 {
		b.MaxDaysAhead = 0
	}
	return b
}

func LoadEventsConfig() EventsConfig {
	return EventsConfig{
		Broker:       strings.ToLower(envStr("EVENTS_BROKER", "none")),
		RabbitMQURL:  firstEnv("RABBITMQ_URL", "AMQP_URL"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envStr("KAFKA_TOPIC", "reservation.events"),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
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

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
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
