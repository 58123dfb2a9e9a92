package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		envConfigFile, envMaxWorkers, envChannelCapacity, envLogLevel,
		envDBPath, envDiagAddr, envTraceFile,
	} {
		t.Setenv(k, "")
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runjs.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxWorkers != defaultMaxWorkers {
		t.Errorf("MaxWorkers = %d, want %d", cfg.MaxWorkers, defaultMaxWorkers)
	}
	if cfg.ChannelCapacity != defaultChannelCapacity {
		t.Errorf("ChannelCapacity = %d, want %d", cfg.ChannelCapacity, defaultChannelCapacity)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.DiagAddr != "" || cfg.TraceFile != "" {
		t.Errorf("DiagAddr/TraceFile = %q/%q, want empty", cfg.DiagAddr, cfg.TraceFile)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv(envMaxWorkers, "2")
	t.Setenv(envChannelCapacity, "8")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envDBPath, "/tmp/runjs.db")
	t.Setenv(envDiagAddr, ":9090")
	t.Setenv(envTraceFile, "/tmp/trace.json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxWorkers != 2 {
		t.Errorf("MaxWorkers = %d, want 2", cfg.MaxWorkers)
	}
	if cfg.ChannelCapacity != 8 {
		t.Errorf("ChannelCapacity = %d, want 8", cfg.ChannelCapacity)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.DBPath != "/tmp/runjs.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/runjs.db")
	}
	if cfg.DiagAddr != ":9090" {
		t.Errorf("DiagAddr = %q, want %q", cfg.DiagAddr, ":9090")
	}
	if cfg.TraceFile != "/tmp/trace.json" {
		t.Errorf("TraceFile = %q, want %q", cfg.TraceFile, "/tmp/trace.json")
	}
}

func TestLoadInvalidIntegersFallBack(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv(envMaxWorkers, "lots")
	t.Setenv(envChannelCapacity, "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxWorkers != defaultMaxWorkers {
		t.Errorf("MaxWorkers = %d, want %d", cfg.MaxWorkers, defaultMaxWorkers)
	}
	if cfg.ChannelCapacity != defaultChannelCapacity {
		t.Errorf("ChannelCapacity = %d, want %d", cfg.ChannelCapacity, defaultChannelCapacity)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
max_workers = 3
channel_capacity = 16
log_level = "warn"
db_path = "runs.db"
diag_addr = "127.0.0.1:7070"
`)
	t.Setenv(envConfigFile, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxWorkers != 3 {
		t.Errorf("MaxWorkers = %d, want 3", cfg.MaxWorkers)
	}
	if cfg.ChannelCapacity != 16 {
		t.Errorf("ChannelCapacity = %d, want 16", cfg.ChannelCapacity)
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelWarn)
	}
	if cfg.DBPath != "runs.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "runs.db")
	}
	if cfg.DiagAddr != "127.0.0.1:7070" {
		t.Errorf("DiagAddr = %q, want %q", cfg.DiagAddr, "127.0.0.1:7070")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "max_workers = 3\nlog_level = \"warn\"\n")
	t.Setenv(envConfigFile, path)
	t.Setenv(envMaxWorkers, "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxWorkers != 1 {
		t.Errorf("MaxWorkers = %d, want 1 (env wins)", cfg.MaxWorkers)
	}
	if cfg.LogLevel != slog.LevelWarn {
		t.Errorf("LogLevel = %v, want %v (from file)", cfg.LogLevel, slog.LevelWarn)
	}
}

func TestLoadImplicitFileInWorkingDir(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, defaultConfigFile), []byte("max_workers = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxWorkers != 2 {
		t.Errorf("MaxWorkers = %d, want 2", cfg.MaxWorkers)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(envConfigFile, filepath.Join(t.TempDir(), "missing.toml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(envConfigFile, writeConfigFile(t, "max_workers = [oops"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
}
