//go:build !linux

package probe

import (
	"log/slog"

	"github.com/omatztw/timetracker/internal/recorder"
)

// New returns the demo stub on platforms without a probe implementation.
func New(logger *slog.Logger) recorder.Probe {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("no focus probe for this platform, using stub")
	return Stub{}
}
