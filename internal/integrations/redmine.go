package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/omatztw/timetracker/internal/storage"
)

const redmineRequestTimeout = 15 * time.Second

// Redmine posts time entries to a Redmine instance authenticated by a static
// API key.
type Redmine struct {
	name       string
	enabled    bool
	baseURL    string
	apiKey     string
	activityID int64
	rules      []CompiledRule
	httpClient *http.Client
}

// NewRedmine builds a Redmine integration from a configuration entry.
// Invalid extraction rules are dropped and reported through warnings; a
// missing URL or API key fails construction.
func NewRedmine(e Entry) (*Redmine, []error, error) {
	if e.URL == "" {
		return nil, nil, fmt.Errorf("integration %q: url is required", e.Name)
	}
	if e.APIKey == "" {
		return nil, nil, fmt.Errorf("integration %q: api_key is required", e.Name)
	}

	rules, warnings := CompileRules(e.Rules)

	return &Redmine{
		name:       e.Name,
		enabled:    e.IsEnabled(),
		baseURL:    strings.TrimRight(e.URL, "/"),
		apiKey:     e.APIKey,
		activityID: e.DefaultActivityID,
		rules:      rules,
		httpClient: &http.Client{Timeout: redmineRequestTimeout},
	}, warnings, nil
}

func (r *Redmine) Name() string        { return r.name }
func (r *Redmine) DisplayName() string { return "Redmine" }
func (r *Redmine) IsEnabled() bool     { return r.enabled }

// ExtractTicketID applies the configured rules in order.
func (r *Redmine) ExtractTicketID(a storage.Activity) (string, bool) {
	return Extract(r.rules, a)
}

// timeEntryRequest is the JSON body for POST /time_entries.json.
type timeEntryRequest struct {
	TimeEntry timeEntryData `json:"time_entry"`
}

type timeEntryData struct {
	IssueID    int64   `json:"issue_id"`
	Hours      float64 `json:"hours"`
	ActivityID int64   `json:"activity_id,omitempty"`
	Comments   string  `json:"comments"`
	SpentOn    string  `json:"spent_on"`
}

// timeEntryResponse mirrors the JSON returned on a successful creation.
type timeEntryResponse struct {
	TimeEntry struct {
		ID int64 `json:"id"`
	} `json:"time_entry"`
}

// SyncTimeEntry creates one Redmine time entry for the activity. The entry
// carries the duration as fractional hours, a comment built from the process
// and title, and the interval's calendar date.
func (r *Redmine) SyncTimeEntry(ctx context.Context, a storage.Activity, ticketID string) (SyncResult, error) {
	issueID, err := strconv.ParseInt(ticketID, 10, 64)
	if err != nil {
		return SyncResult{}, fmt.Errorf("invalid ticket id %q: %w", ticketID, err)
	}

	spentOn, _, _ := strings.Cut(a.StartTime, "T")
	reqBody := timeEntryRequest{
		TimeEntry: timeEntryData{
			IssueID:    issueID,
			Hours:      float64(a.DurationSeconds) / 3600.0,
			ActivityID: r.activityID,
			Comments:   fmt.Sprintf("%s - %s", a.ProcessName, a.WindowTitle),
			SpentOn:    spentOn,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return SyncResult{}, fmt.Errorf("marshalling time entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/time_entries.json", bytes.NewReader(body))
	if err != nil {
		return SyncResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Redmine-API-Key", r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return SyncResult{}, fmt.Errorf("posting time entry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return SyncResult{
			Success: false,
			Message: fmt.Sprintf("redmine API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}, nil
	}

	var result timeEntryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SyncResult{}, fmt.Errorf("decoding time entry response: %w", err)
	}

	return SyncResult{
		Success:    true,
		Message:    fmt.Sprintf("Created time entry #%d", result.TimeEntry.ID),
		ExternalID: strconv.FormatInt(result.TimeEntry.ID, 10),
	}, nil
}

// currentUserResponse mirrors GET /users/current.json.
type currentUserResponse struct {
	User struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
	} `json:"user"`
}

// TestConnection reads the authenticated user. Success is HTTP-level success
// plus a decodable body; the content itself is not validated further.
func (r *Redmine) TestConnection(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/users/current.json", nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Redmine-API-Key", r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("connecting to redmine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("authentication failed: status %d", resp.StatusCode)
	}

	var result currentUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decoding user response: %w", err)
	}
	return true, nil
}
