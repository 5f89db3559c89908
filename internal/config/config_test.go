package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Server.Port != 4217 {
		t.Errorf("port = %d, want default 4217", cfg.Server.Port)
	}
	if cfg.Recorder.PollIntervalSeconds != 1 {
		t.Errorf("poll interval = %d, want 1", cfg.Recorder.PollIntervalSeconds)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadMalformedFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFrom(path)
	if err == nil {
		t.Error("expected a parse error to report")
	}
	if cfg.Server.Port != 4217 {
		t.Errorf("port = %d, want default after fallback", cfg.Server.Port)
	}
}

func TestLoadFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	doc := `{"server":{"port":9999,"token":"abc"},"recorder":{"poll_interval_seconds":5}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Server.Port != 9999 || cfg.Server.Token != "abc" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Recorder.PollIntervalSeconds != 5 {
		t.Errorf("poll interval = %d, want 5", cfg.Recorder.PollIntervalSeconds)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TIMETRACKER_SERVER_PORT", "7100")
	t.Setenv("TIMETRACKER_DATA_DIR", "/tmp/tt-data")
	t.Setenv("TIMETRACKER_LOG_LEVEL", "debug")

	cfg, err := loadFrom(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Server.Port != 7100 {
		t.Errorf("port = %d, want 7100", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/tt-data" {
		t.Errorf("data dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestNonPositivePollIntervalNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"recorder":{"poll_interval_seconds":-3}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom: %v", err)
	}
	if cfg.Recorder.PollIntervalSeconds != 1 {
		t.Errorf("poll interval = %d, want normalized 1", cfg.Recorder.PollIntervalSeconds)
	}
}
