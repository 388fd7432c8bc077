// Package app holds process-level configuration loaded from the environment.
package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	DataDir         string
	FFmpegPath      string
	MetadataTimeout time.Duration
	ReadaheadBytes  int64
	RateLimitRPS    float64
	RateLimitBurst  int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DataDir:         getEnv("DATA_DIR", "data"),
		FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
		MetadataTimeout: time.Duration(getEnvInt64("METADATA_TIMEOUT_SECONDS", 60)) * time.Second,
		ReadaheadBytes:  getEnvInt64("READAHEAD_BYTES", 16<<20),
		RateLimitRPS:    float64(getEnvInt64("RATE_LIMIT_RPS", 100)),
		RateLimitBurst:  int(getEnvInt64("RATE_LIMIT_BURST", 200)),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}
