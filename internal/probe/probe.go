// Package probe implements the focus probe: a platform capability reporting
// the foreground window's process name, title, and, for recognized browsers,
// the navigated domain.
package probe

import (
	"github.com/omatztw/timetracker/internal/recorder"
)

// Stub is the probe used where no platform implementation is available
// (development machines, headless CI). It reports a fixed demo window.
type Stub struct{}

func (Stub) Sample() (recorder.Sample, bool) {
	return recorder.Sample{
		Process: "DemoApp.exe",
		Title:   "Demo Window - Development Mode",
	}, true
}
