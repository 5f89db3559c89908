//go:build linux

package probe

import (
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/omatztw/timetracker/internal/recorder"
)

const xdotoolTimeout = 500 * time.Millisecond

// X11Probe reads the active window through xdotool and resolves the owning
// process name via the pid. Every failure maps to "no observation": the
// recorder simply makes no transition on that tick.
type X11Probe struct {
	logger *slog.Logger
}

// New returns the platform probe: the X11 implementation when xdotool is
// available, the demo stub otherwise.
func New(logger *slog.Logger) recorder.Probe {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := exec.LookPath("xdotool"); err != nil {
		logger.Warn("xdotool not found, using stub focus probe")
		return Stub{}
	}
	return &X11Probe{logger: logger}
}

func (p *X11Probe) Sample() (recorder.Sample, bool) {
	windowID, err := p.xdotool("getactivewindow")
	if err != nil {
		return recorder.Sample{}, false
	}

	title, err := p.xdotool("getwindowname", windowID)
	if err != nil {
		return recorder.Sample{}, false
	}

	pidStr, err := p.xdotool("getwindowpid", windowID)
	if err != nil {
		return recorder.Sample{}, false
	}
	pid, err := strconv.ParseInt(pidStr, 10, 32)
	if err != nil {
		return recorder.Sample{}, false
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return recorder.Sample{}, false
	}
	name, err := proc.Name()
	if err != nil {
		return recorder.Sample{}, false
	}

	return recorder.Sample{
		Process: name,
		Title:   title,
		Domain:  BrowserDomain(name, title),
	}, true
}

func (p *X11Probe) xdotool(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), xdotoolTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "xdotool", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
