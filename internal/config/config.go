package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredential is returned by Load when no Gemini API key is set.
var ErrMissingCredential = errors.New("missing credential")

type Config struct {
	// Server
	Port        string
	Env         string
	LogLevel    string
	FrontendURL string

	// Redis (optional)
	RedisURL string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiTemperature    float64
	GeminiRequestsPerMin int
	GeminiConcurrentReqs int
	GeminiMaxRetries     int

	// Uploads
	MaxImageBytes int64

	// Q&A
	QnAHistoryLimit int

	// Jobs
	WorkerCount  int
	JobQueueSize int
	JobTimeout   time.Duration

	// Rate limiting (per client, generate + reply endpoints)
	GenerateRateLimit int

	// Views
	FlashcardFlipDelay time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	apiKey := getEnvOrDefault("GEMINI_API_KEY", os.Getenv("API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY environment variable is not set", ErrMissingCredential)
	}

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", ""),
		RedisURL:             getEnvOrDefault("REDIS_URL", ""),
		SessionSecret:        getEnvOrDefault("SESSION_SECRET", ""),
		SessionTTL:           getEnvAsDurationOrDefault("SESSION_TTL", 2*time.Hour),
		GeminiAPIKey:         apiKey,
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiTemperature:    getEnvAsFloatOrDefault("GEMINI_TEMPERATURE", 0.3),
		GeminiRequestsPerMin: getEnvAsIntOrDefault("GEMINI_REQUESTS_PER_MINUTE", 60),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		GeminiMaxRetries:     getEnvAsIntOrDefault("GEMINI_MAX_RETRIES", 2),
		MaxImageBytes:        int64(getEnvAsIntOrDefault("MAX_IMAGE_MB", 10)) * 1024 * 1024,
		QnAHistoryLimit:      getEnvAsIntOrDefault("QNA_HISTORY_LIMIT", 40),
		WorkerCount:          getEnvAsIntOrDefault("WORKER_COUNT", 4),
		JobQueueSize:         getEnvAsIntOrDefault("JOB_QUEUE_SIZE", 64),
		JobTimeout:           getEnvAsDurationOrDefault("JOB_TIMEOUT", 3*time.Minute),
		GenerateRateLimit:    getEnvAsIntOrDefault("GENERATE_RATE_LIMIT", 20),
		FlashcardFlipDelay:   getEnvAsStrictDurationOrDefault("FLASHCARD_FLIP_DELAY", 300*time.Millisecond),
	}

	if cfg.SessionSecret == "" {
		// Sessions are in-memory, so a per-process secret loses nothing on restart.
		cfg.SessionSecret = randomSecret()
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate session secret: %v", err))
	}
	return hex.EncodeToString(b)
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// getEnvAsStrictDurationOrDefault accepts only Go durations ("300ms"), for
// keys where a bare number has no obvious unit.
func getEnvAsStrictDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

// getEnvAsDurationOrDefault accepts Go durations ("90s", "2h") or a bare
// number of minutes.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Minute
	}
	return defaultVal
}
