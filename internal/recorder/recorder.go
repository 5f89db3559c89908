package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/omatztw/timetracker/internal/storage"
)

// Sample is one focus-probe observation: the foreground window's process,
// title, and, for recognized browsers, the navigated domain.
type Sample struct {
	Process string
	Title   string
	Domain  string
}

// Probe reports the currently focused window. Implementations are stateless
// and polled once per tick; returning ok=false means "no observation", which
// leaves the recorder's state untouched.
type Probe interface {
	Sample() (Sample, bool)
}

// Appender is the single store operation the recorder needs.
type Appender interface {
	AppendActivity(storage.Activity) (int64, error)
}

// Recorder turns probe samples into closed activity intervals. One interval
// stays open while the focused triple is unchanged; a change, or a tracking
// pause, closes it. Intervals shorter than a second are discarded as flicker.
type Recorder struct {
	probe    Probe
	store    Appender
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	tracking bool

	// Open-interval state, touched only by the run loop.
	open      bool
	current   Sample
	openStart time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithInterval overrides the 1s tick interval.
func WithInterval(d time.Duration) Option {
	return func(r *Recorder) { r.interval = d }
}

// WithClock overrides the wall clock (used by tests).
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// New creates a Recorder with tracking enabled.
func New(probe Probe, store Appender, opts ...Option) *Recorder {
	r := &Recorder{
		probe:    probe,
		store:    store,
		logger:   slog.Default(),
		interval: time.Second,
		now:      time.Now,
		tracking: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetTracking flips the tracking toggle. The effect is sampled by the loop,
// so it becomes visible at most one tick later.
func (r *Recorder) SetTracking(on bool) {
	r.mu.Lock()
	r.tracking = on
	r.mu.Unlock()
}

// IsTracking reports the current toggle state.
func (r *Recorder) IsTracking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracking
}

// Run ticks until ctx is cancelled, closing any open interval on the way out.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeOpen(r.now())
			return
		case <-ticker.C:
			r.tick(r.now())
		}
	}
}

// tick evaluates one transition of the state machine.
func (r *Recorder) tick(now time.Time) {
	if !r.IsTracking() {
		r.closeOpen(now)
		return
	}

	sample, ok := r.probe.Sample()
	if !ok {
		// No observation; a previously open interval keeps accumulating.
		return
	}

	if r.open && sample == r.current {
		return
	}

	r.closeOpen(now)
	r.open = true
	r.current = sample
	r.openStart = now
}

// closeOpen emits the open interval, if any, and returns to idle. Records
// with an empty process name or a duration under one second are dropped; a
// clock that moved backwards yields a negative duration and is dropped the
// same way. Store failures are logged and the record is lost — the loop
// itself never stops on error.
func (r *Recorder) closeOpen(end time.Time) {
	if !r.open {
		return
	}
	start := r.openStart
	sample := r.current
	r.open = false
	r.current = Sample{}

	if sample.Process == "" {
		return
	}
	duration := int64(end.Sub(start) / time.Second)
	if duration < 1 {
		return
	}

	_, err := r.store.AppendActivity(storage.Activity{
		ProcessName:     sample.Process,
		WindowTitle:     sample.Title,
		Domain:          sample.Domain,
		StartTime:       start.Format(storage.TimeLayout),
		EndTime:         end.Format(storage.TimeLayout),
		DurationSeconds: duration,
	})
	if err != nil {
		r.logger.Error("dropping activity record", "process", sample.Process, "error", err)
	}
}
