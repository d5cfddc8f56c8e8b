package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort         string
	MongoURI           string
	MongoDBName        string
	ProjectsCollection string
	TasksCollection    string
	LogFile            string
	LogLevel           string
	AllowedOrigins     []string
	RequestTimeout     time.Duration
	BreakerTimeout     time.Duration
	SeedSampleData     bool
}

// Load reads the given .env files (default ".env") into the environment and
// builds the Config from it. Missing files are skipped, variables already
// set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}
	}

	cfg := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDBName:        getEnv("MONGO_DB_NAME", "TMS-DATABASE"),
		ProjectsCollection: getEnv("MONGO_PROJECTS_COLLECTION", "projects"),
		TasksCollection:    getEnv("MONGO_TASKS_COLLECTION", "tasks"),
		LogFile:            os.Getenv("LOG_FILE"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI is not set in the environment variables")
	}

	var err error
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.BreakerTimeout, err = getDuration("BREAKER_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SeedSampleData, err = getBool("SEED_SAMPLE_DATA", false); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
