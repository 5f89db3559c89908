// Package uploader implements best-effort periodic upload of the current
// day's activities to a configured destination server.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/omatztw/timetracker/internal/integrations"
	"github.com/omatztw/timetracker/internal/storage"
)

// ActivityLister is the single store operation the worker needs.
type ActivityLister interface {
	ActivitiesOn(date string) ([]storage.Activity, error)
}

// Payload is one upload batch: a fresh id, the day covered, and that day's
// activity snapshot. Delivery is at-least-once; the batch id lets the
// receiving side deduplicate.
type Payload struct {
	BatchID    string             `json:"batch_id"`
	Date       string             `json:"date"`
	Activities []storage.Activity `json:"activities"`
}

// Worker periodically posts the current day's activities to the configured
// server. Failures are logged and retried wholesale on the next tick; there
// is no delivery guarantee.
type Worker struct {
	store      ActivityLister
	serverURL  string
	interval   time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Worker.
type Option func(*Worker)

// WithClock overrides the wall clock (used by tests).
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// New creates a Worker from the upload configuration block.
func New(store ActivityLister, cfg integrations.UploadConfig, opts ...Option) *Worker {
	interval := time.Duration(cfg.AutoUploadIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	w := &Worker{
		store:      store,
		serverURL:  cfg.ServerURL,
		interval:   interval,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run uploads once per interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Warn("activity upload failed", "error", err)
			}
		}
	}
}

// RunOnce uploads the current day's snapshot. A day with no activities is
// skipped without a request.
func (w *Worker) RunOnce(ctx context.Context) error {
	date := w.now().Format(storage.DateLayout)

	activities, err := w.store.ActivitiesOn(date)
	if err != nil {
		return fmt.Errorf("listing activities for %s: %w", date, err)
	}
	if len(activities) == 0 {
		return nil
	}

	payload := Payload{
		BatchID:    uuid.New().String(),
		Date:       date,
		Activities: activities,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling upload payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.serverURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload rejected (%d): %s", resp.StatusCode, string(respBody))
	}

	w.logger.Info("uploaded activities", "date", date, "count", len(activities), "batch_id", payload.BatchID)
	return nil
}
