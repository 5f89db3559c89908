package integrations

import (
	"context"

	"github.com/omatztw/timetracker/internal/storage"
)

// SyncResult is the outcome of one time-entry synchronization attempt.
// It is returned to the caller and never persisted.
type SyncResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ExternalID string `json:"external_id,omitempty"`
}

// Integration is one external ticket-tracking connector. Implementations are
// immutable after construction; the registry swaps whole instances on reload,
// so no method needs to tolerate concurrent reconfiguration.
type Integration interface {
	// Name returns the configuration key for this instance.
	Name() string

	// DisplayName returns the human-readable service name.
	DisplayName() string

	// IsEnabled reports whether the entry was enabled at load time.
	IsEnabled() bool

	// ExtractTicketID runs the configured extraction rules against the
	// activity, in order, and returns the first capture. ok=false means no
	// rule matched, which is not an error.
	ExtractTicketID(a storage.Activity) (string, bool)

	// SyncTimeEntry posts the activity's elapsed time against ticketID.
	// A reachable service that rejects the request yields a SyncResult with
	// Success=false and the remote status in the message; only transport
	// failures return an error. No retries either way.
	SyncTimeEntry(ctx context.Context, a storage.Activity, ticketID string) (SyncResult, error)

	// TestConnection issues a lightweight authenticated read.
	TestConnection(ctx context.Context) (bool, error)
}
