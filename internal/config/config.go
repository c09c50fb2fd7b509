// Package config reads the process configuration from the environment,
// loading a .env file first when one exists.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	HTTPAddr string

	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	AMQPURL         string
	LeadQueue       string
	QueueMaxRetries int

	GCSBucket       string
	LocalStorageDir string

	RedisAddr string
	CacheTTL  time.Duration

	FCMProjectID       string
	FCMCredentialsFile string

	LogLevel        string
	FileConcurrency int

	// EnvFileLoaded is false when no .env file was found.
	EnvFileLoaded bool
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	cfg.EnvFileLoaded = loaded
	return cfg, nil
}

// FromEnv reads the environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		StoreDriver:        getenv("STORE_DRIVER", DriverPostgres),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MongoURI:           getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:      getenv("MONGO_DATABASE", "leads"),
		AMQPURL:            os.Getenv("AMQP_URL"),
		LeadQueue:          getenv("LEAD_QUEUE", "lead_uploads"),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		LocalStorageDir:    getenv("LOCAL_STORAGE_DIR", "./data"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		FCMProjectID:       os.Getenv("FCM_PROJECT_ID"),
		FCMCredentialsFile: os.Getenv("FCM_CREDENTIALS_FILE"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
			getenv("DB_HOST", "localhost"), getenv("DB_PORT", "5432"), os.Getenv("DB_NAME"),
		)
	}

	var err error
	if cfg.QueueMaxRetries, err = intEnv("QUEUE_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.FileConcurrency, err = intEnv("FILE_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = durationEnv("CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}

	switch cfg.StoreDriver {
	case DriverPostgres, DriverMongo:
	default:
		return nil, fmt.Errorf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver)
	}
	if cfg.FileConcurrency < 1 {
		return nil, fmt.Errorf("FILE_CONCURRENCY: must be at least 1, got %d", cfg.FileConcurrency)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, v)
	}
	return d, nil
}
