package integrations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/omatztw/timetracker/internal/storage"
)

// ErrPluginNotFound is returned when a command names an unknown plugin.
var ErrPluginNotFound = errors.New("plugin not found")

// TicketMatch is one successful extraction: which plugin matched and what it
// extracted.
type TicketMatch struct {
	Plugin   string `json:"plugin"`
	TicketID string `json:"ticket_id"`
}

// EntryError records a configuration entry that failed to construct.
type EntryError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// LoadReport summarizes one registry reload. A malformed document or a
/// broken entry never fails the reload: the valid subset is activated and the
// problems are reported here.
type LoadReport struct {
	Loaded      []string     `json:"loaded"`
	Failed      []EntryError `json:"failed,omitempty"`
	ConfigError string       `json:"config_error,omitempty"`
}

// Registry owns the active plugin instances. Load rebuilds the whole list
// and swaps it atomically; readers resolve an instance under the lock and
// then call it with no lock held, so a reload never blocks behind a network
// call and an in-flight sync keeps the instance it resolved.
type Registry struct {
	configPath string
	logger     *slog.Logger

	mu      sync.RWMutex
	plugins []Integration
	upload  *UploadConfig
}

// NewRegistry creates an empty registry reading from configPath.
func NewRegistry(configPath string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{configPath: configPath, logger: logger}
}

// Load reads the configuration document and rebuilds the active plugin list.
// Disabled entries are skipped; an entry whose construction fails is dropped
// without aborting the batch. A document that fails to parse falls back to
// an empty configuration.
func (r *Registry) Load() LoadReport {
	var report LoadReport

	cfg, err := LoadConfig(r.configPath)
	if err != nil {
		r.logger.Warn("integrations config unusable, loading no plugins", "path", r.configPath, "error", err)
		report.ConfigError = err.Error()
	}

	var plugins []Integration
	for _, entry := range cfg.Integrations {
		if !entry.IsEnabled() {
			continue
		}

		plugin, warnings, err := buildIntegration(entry)
		if err != nil {
			r.logger.Warn("skipping integration", "name", entry.Name, "error", err)
			report.Failed = append(report.Failed, EntryError{Name: entry.Name, Error: err.Error()})
			continue
		}
		for _, w := range warnings {
			r.logger.Warn("dropped extraction rule", "plugin", entry.Name, "warning", w)
		}

		plugins = append(plugins, plugin)
		report.Loaded = append(report.Loaded, plugin.Name())
	}

	r.mu.Lock()
	r.plugins = plugins
	r.upload = cfg.Upload
	r.mu.Unlock()

	r.logger.Info("integrations loaded", "count", len(plugins))
	return report
}

func buildIntegration(e Entry) (Integration, []error, error) {
	switch e.Type {
	case "redmine":
		return NewRedmine(e)
	default:
		return nil, nil, fmt.Errorf("integration %q: unknown type %q", e.Name, e.Type)
	}
}

// List returns the active plugin names in configuration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.plugins))
	for i, p := range r.plugins {
		names[i] = p.Name()
	}
	return names
}

// Upload returns the upload destination block, or nil when not configured.
func (r *Registry) Upload() *UploadConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.upload
}

// Get resolves a plugin by name.
func (r *Registry) Get(name string) (Integration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
}

// ExtractAll runs every active plugin's extraction against the activity and
// returns all hits. Which hit is authoritative is the caller's choice.
func (r *Registry) ExtractAll(a storage.Activity) []TicketMatch {
	r.mu.RLock()
	plugins := r.plugins
	r.mu.RUnlock()

	var matches []TicketMatch
	for _, p := range plugins {
		if id, ok := p.ExtractTicketID(a); ok {
			matches = append(matches, TicketMatch{Plugin: p.Name(), TicketID: id})
		}
	}
	return matches
}

// Sync delegates a time-entry synchronization to the named plugin. The
// network call runs with no registry lock held.
func (r *Registry) Sync(ctx context.Context, name string, a storage.Activity, ticketID string) (SyncResult, error) {
	plugin, err := r.Get(name)
	if err != nil {
		return SyncResult{}, err
	}
	return plugin.SyncTimeEntry(ctx, a, ticketID)
}

// TestConnection delegates a connection test to the named plugin.
func (r *Registry) TestConnection(ctx context.Context, name string) (bool, error) {
	plugin, err := r.Get(name)
	if err != nil {
		return false, err
	}
	return plugin.TestConnection(ctx)
}
