package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultMaxWorkers      = 4
	defaultChannelCapacity = 64
	defaultDBPath          = ":memory:"
	defaultConfigFile      = "runjs.toml"

	envConfigFile      = "RUNJS_CONFIG"
	envMaxWorkers      = "RUNJS_MAX_WORKERS"
	envChannelCapacity = "RUNJS_CHANNEL_CAPACITY"
	envLogLevel        = "RUNJS_LOG_LEVEL"
	envDBPath          = "RUNJS_DB_PATH"
	envDiagAddr        = "RUNJS_DIAG_ADDR"
	envTraceFile       = "RUNJS_TRACE_FILE"
)

// Config holds application configuration loaded from an optional TOML file
// and environment variables.
type Config struct {
	MaxWorkers      int
	ChannelCapacity int
	LogLevel        slog.Level
	DBPath          string
	DiagAddr        string
	TraceFile       string
}

// fileConfig mirrors Config for TOML decoding. Zero values mean "not set".
type fileConfig struct {
	MaxWorkers      int    `toml:"max_workers"`
	ChannelCapacity int    `toml:"channel_capacity"`
	LogLevel        string `toml:"log_level"`
	DBPath          string `toml:"db_path"`
	DiagAddr        string `toml:"diag_addr"`
	TraceFile       string `toml:"trace_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxWorkers:      defaultMaxWorkers,
		ChannelCapacity: defaultChannelCapacity,
		LogLevel:        slog.LevelInfo,
		DBPath:          defaultDBPath,
	}
}

// Load reads configuration with precedence defaults < TOML file < environment.
// The file is taken from RUNJS_CONFIG, falling back to ./runjs.toml when it
// exists. A file named explicitly that cannot be read or parsed is an error.
func Load() (Config, error) {
	cfg := Default()

	path, explicit := os.Getenv(envConfigFile), true
	if path == "" {
		path, explicit = defaultConfigFile, false
	}
	if err := cfg.mergeFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	}

	cfg.mergeEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if fc.MaxWorkers > 0 {
		c.MaxWorkers = fc.MaxWorkers
	}
	if fc.ChannelCapacity > 0 {
		c.ChannelCapacity = fc.ChannelCapacity
	}
	if fc.LogLevel != "" {
		c.LogLevel = parseLogLevel(fc.LogLevel)
	}
	if fc.DBPath != "" {
		c.DBPath = fc.DBPath
	}
	if fc.DiagAddr != "" {
		c.DiagAddr = fc.DiagAddr
	}
	if fc.TraceFile != "" {
		c.TraceFile = fc.TraceFile
	}
	return nil
}

func (c *Config) mergeEnv() {
	if v := os.Getenv(envMaxWorkers); v != "" {
		c.MaxWorkers = parsePositive(v, c.MaxWorkers)
	}
	if v := os.Getenv(envChannelCapacity); v != "" {
		c.ChannelCapacity = parsePositive(v, c.ChannelCapacity)
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envDBPath); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv(envDiagAddr); v != "" {
		c.DiagAddr = v
	}
	if v := os.Getenv(envTraceFile); v != "" {
		c.TraceFile = v
	}
}

func parsePositive(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
