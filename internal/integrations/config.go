package integrations

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const defaultUploadIntervalMinutes = 60

// ExtractionRule maps a regex pattern over one activity field to a ticket id.
// The pattern's first capture group is the extracted id.
type ExtractionRule struct {
	Pattern string `toml:"pattern"`
	Source  string `toml:"source"`
}

// Entry is one integration as written in integrations.toml. Type selects the
// concrete connector; the remaining fields are that connector's settings.
// Enabled defaults to true when omitted.
type Entry struct {
	Name    string `toml:"name"`
	Enabled *bool  `toml:"enabled"`
	Type    string `toml:"type"`

	URL               string           `toml:"url"`
	APIKey            string           `toml:"api_key"`
	DefaultActivityID int64            `toml:"default_activity_id,omitempty"`
	Rules             []ExtractionRule `toml:"rules,omitempty"`
}

// IsEnabled resolves the optional enabled flag (absent means enabled).
func (e Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// UploadConfig describes the optional activity-upload destination.
type UploadConfig struct {
	ServerURL                 string `toml:"server_url"`
	Enabled                   bool   `toml:"enabled"`
	AutoUpload                bool   `toml:"auto_upload"`
	AutoUploadIntervalMinutes int    `toml:"auto_upload_interval_minutes"`
}

// File is the full integrations configuration document.
type File struct {
	Integrations []Entry       `toml:"integrations"`
	Upload       *UploadConfig `toml:"upload,omitempty"`
}

// ConfigPath returns the integrations document path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "integrations.toml")
}

// LoadConfig reads the document at path. A missing file yields an empty
// configuration with no error; a malformed file yields an empty configuration
// plus the parse error so the caller can log it. Neither case is fatal.
func LoadConfig(path string) (File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return File{}, nil
	}
	if err != nil {
		return File{}, fmt.Errorf("reading integrations config: %w", err)
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing integrations config: %w", err)
	}

	if f.Upload != nil && f.Upload.AutoUploadIntervalMinutes <= 0 {
		f.Upload.AutoUploadIntervalMinutes = defaultUploadIntervalMinutes
	}
	return f, nil
}

// SaveConfig writes the document to path, creating parent directories.
func SaveConfig(path string, f File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The encoder cannot represent nil optional flags; pin them first.
	for i := range f.Integrations {
		if f.Integrations[i].Enabled == nil {
			enabled := true
			f.Integrations[i].Enabled = &enabled
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating integrations config: %w", err)
	}
	defer out.Close()

	if err := toml.NewEncoder(out).Encode(f); err != nil {
		return fmt.Errorf("encoding integrations config: %w", err)
	}
	return nil
}

// SampleConfig returns a disabled example document a user can edit into a
// working setup.
func SampleConfig() File {
	disabled := false
	return File{
		Integrations: []Entry{
			{
				Name:              "my-redmine",
				Enabled:           &disabled,
				Type:              "redmine",
				URL:               "https://redmine.example.com",
				APIKey:            "your-api-key-here",
				DefaultActivityID: 9,
				Rules: []ExtractionRule{
					{Pattern: `#(\d+)`, Source: "window_title"},
					{Pattern: `Issue (\d+)`, Source: "window_title"},
				},
			},
		},
		Upload: &UploadConfig{
			ServerURL:                 "https://timetracker.example.com/api/upload",
			Enabled:                   false,
			AutoUpload:                false,
			AutoUploadIntervalMinutes: defaultUploadIntervalMinutes,
		},
	}
}
