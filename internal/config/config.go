package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DraftBackendSQLite = "sqlite"
	DraftBackendRedis  = "redis"
	DraftBackendMemory = "memory"
)

type Config struct {
	Port              string
	AllowedOrigin     string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	DraftBackend      string
	DraftSQLitePath   string
	DraftKey          string
	DraftSaveInterval time.Duration
	DraftMaxAge       time.Duration
	CheckoutTimeout   time.Duration
	CheckoutRateLimit string
	CurrencySymbol    string
	LogLevel          string
}

// Load reads .env when present, then the process environment.
// Variables already set in the environment win over .env values.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		AllowedOrigin:     getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           redisDB,
		DraftBackend:      strings.ToLower(getEnv("DRAFT_BACKEND", DraftBackendSQLite)),
		DraftSQLitePath:   getEnv("DRAFT_SQLITE_PATH", "pos_draft.db"),
		DraftKey:          getEnv("DRAFT_KEY", "pos_draft_cart"),
		DraftSaveInterval: time.Duration(positiveInt("DRAFT_SAVE_INTERVAL_SECONDS", 30)) * time.Second,
		DraftMaxAge:       time.Duration(positiveInt("DRAFT_MAX_AGE_HOURS", 24)) * time.Hour,
		CheckoutTimeout:   time.Duration(positiveInt("CHECKOUT_TIMEOUT_SECONDS", 15)) * time.Second,
		CheckoutRateLimit: getEnv("CHECKOUT_RATE_LIMIT", "30-M"),
		CurrencySymbol:    getEnv("CURRENCY_SYMBOL", "EGP "),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
