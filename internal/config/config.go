package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config is the application configuration for the daemon and the CLI client.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Storage  StorageConfig  `json:"storage"`
	Recorder RecorderConfig `json:"recorder"`
	Log      LogConfig      `json:"log"`
}

type ServerConfig struct {
	Port int `json:"port"`
	// Token, when non-empty, is required as a bearer token on every API call.
	Token string `json:"token"`
}

type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

type RecorderConfig struct {
	// PollIntervalSeconds is the focus-probe sampling rate.
	PollIntervalSeconds int `json:"poll_interval_seconds"`
}

type LogConfig struct {
	Level string `json:"level"`
}

func defaults() Config {
	return Config{
		Server:   ServerConfig{Port: 4217},
		Storage:  StorageConfig{DataDir: defaultDataDir()},
		Recorder: RecorderConfig{PollIntervalSeconds: 1},
		Log:      LogConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "timetracker")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "timetracker"
	}
	return filepath.Join(home, ".local", "share", "timetracker")
}

func configFilePath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "timetracker", "config.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("timetracker", "config.json")
	}
	return filepath.Join(home, ".config", "timetracker", "config.json")
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/timetracker/config.json, then applies TIMETRACKER_*
// environment overrides. A missing file yields defaults; a malformed file
// yields defaults plus a logged-by-caller error, never a failure to start.
func Load() (Config, error) {
	return loadFrom(configFilePath())
}

func loadFrom(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults only.
	case err != nil:
		applyEnvOverrides(&cfg)
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if jsonErr := json.Unmarshal(data, &cfg); jsonErr != nil {
			cfg = defaults()
			applyEnvOverrides(&cfg)
			return cfg, fmt.Errorf("parsing config %s: %w", path, jsonErr)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Recorder.PollIntervalSeconds <= 0 {
		cfg.Recorder.PollIntervalSeconds = 1
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TIMETRACKER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TIMETRACKER_API_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("TIMETRACKER_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("TIMETRACKER_POLL_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			cfg.Recorder.PollIntervalSeconds = secs
		}
	}
	if v := os.Getenv("TIMETRACKER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
