package worker

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds configuration for the evaluation worker
type Config struct {
	WorkerPort         string
	ConfigPath         string
	LogLevel           string
	LogFormat          string
	LogFile            string
	EvalConcurrency    int
	ShadowingSeed      uint64 // reproducible only with EvalConcurrency 1
	SeededShadowing    bool
	RateLimitRPS       float64
	RateLimitBurst     int
	ReportDB           string
	EvaluatorCacheSize int
	JaegerEndpoint     string
	ShutdownTimeout    time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	seed, seeded := getEnvUint64("SHADOWING_SEED")

	config := &Config{
		WorkerPort:         getEnv("WORKER_PORT", "8081"),
		ConfigPath:         getEnv("CONFIG", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		LogFile:            getEnv("LOG_FILE", ""),
		EvalConcurrency:    getEnvInt("EVAL_CONCURRENCY", runtime.GOMAXPROCS(0)),
		ShadowingSeed:      seed,
		SeededShadowing:    seeded,
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
		ReportDB:           getEnv("REPORT_DB", ""),
		EvaluatorCacheSize: getEnvInt("EVALUATOR_CACHE_SIZE", 64),
		JaegerEndpoint:     getEnv("JAEGER_ENDPOINT", ""),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", "10s"),
	}

	return config
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvUint64 reports whether key holds a valid unsigned integer
func getEnvUint64(key string) (uint64, bool) {
	if value := os.Getenv(key); value != "" {
		if u, err := strconv.ParseUint(value, 10, 64); err == nil {
			return u, true
		}
	}
	return 0, false
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
