package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Pipeline PipelineConfig
	Storage  StorageConfig
	Log      LogConfig
}

type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PipelineConfig struct {
	Workers           int
	QueueSize         int
	SeparationTimeout time.Duration
}

type StorageConfig struct {
	Path           string
	MemoryCapacity uint64 // bytes
	ResultTTL      time.Duration
	Persist        bool
	HistoryPath    string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory if one exists.
func Load() *Config {
	// a missing .env is normal in production
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Address:      envStr("SWAP_ADDRESS", ":8080"),
			ReadTimeout:  envDuration("SWAP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: envDuration("SWAP_WRITE_TIMEOUT", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			Workers:           envInt("SWAP_WORKERS", 4),
			QueueSize:         envInt("SWAP_QUEUE_SIZE", 100),
			SeparationTimeout: envDuration("SWAP_SEPARATION_TIMEOUT", 3*time.Minute),
		},
		Storage: StorageConfig{
			Path:           envStr("SWAP_STORAGE_PATH", "./data"),
			MemoryCapacity: envBytes("SWAP_CACHE_CAPACITY", 512*humanize.MByte),
			ResultTTL:      envDuration("SWAP_RESULT_TTL", 30*24*time.Hour),
			Persist:        envBool("SWAP_PERSIST", true),
			HistoryPath:    envStr("SWAP_HISTORY_PATH", "./data/history.db"),
		},
		Log: LogConfig{
			Level:  envStr("SWAP_LOG_LEVEL", "info"),
			Format: envStr("SWAP_LOG_FORMAT", "text"),
		},
	}
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envBytes accepts human sizes such as "512MB" or "2 GiB".
func envBytes(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := humanize.ParseBytes(v); err == nil {
			return n
		}
	}
	return fallback
}
