package integrations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/omatztw/timetracker/internal/storage"
)

func testActivity() storage.Activity {
	return storage.Activity{
		ID:              1,
		ProcessName:     "chrome.exe",
		WindowTitle:     "Bug report",
		Domain:          "tracker.example.com",
		StartTime:       "2024-01-01T10:00:00",
		EndTime:         "2024-01-01T10:30:00",
		DurationSeconds: 1800,
	}
}

func newTestRedmine(t *testing.T, url string) *Redmine {
	t.Helper()
	r, warnings, err := NewRedmine(Entry{
		Name:              "rm",
		Type:              "redmine",
		URL:               url,
		APIKey:            "secret",
		DefaultActivityID: 9,
		Rules:             []ExtractionRule{{Pattern: `#(\d+)`, Source: SourceWindowTitle}},
	})
	if err != nil {
		t.Fatalf("NewRedmine: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	return r
}

func TestNewRedmineRequiresURLAndKey(t *testing.T) {
	if _, _, err := NewRedmine(Entry{Name: "x", Type: "redmine", APIKey: "k"}); err == nil {
		t.Error("missing url accepted")
	}
	if _, _, err := NewRedmine(Entry{Name: "x", Type: "redmine", URL: "https://r.example.com"}); err == nil {
		t.Error("missing api_key accepted")
	}
}

func TestSyncTimeEntryCreated(t *testing.T) {
	var gotPath, gotKey string
	var gotBody timeEntryRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Redmine-API-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"time_entry":{"id":55}}`))
	}))
	defer srv.Close()

	r := newTestRedmine(t, srv.URL)
	result, err := r.SyncTimeEntry(context.Background(), testActivity(), "42")
	if err != nil {
		t.Fatalf("SyncTimeEntry: %v", err)
	}

	if !result.Success {
		t.Error("Success = false, want true")
	}
	if result.ExternalID != "55" {
		t.Errorf("ExternalID = %q, want %q", result.ExternalID, "55")
	}
	if gotPath != "/time_entries.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotBody.TimeEntry.IssueID != 42 {
		t.Errorf("issue_id = %d, want 42", gotBody.TimeEntry.IssueID)
	}
	if gotBody.TimeEntry.Hours != 0.5 {
		t.Errorf("hours = %f, want 0.5", gotBody.TimeEntry.Hours)
	}
	if gotBody.TimeEntry.SpentOn != "2024-01-01" {
		t.Errorf("spent_on = %q, want 2024-01-01", gotBody.TimeEntry.SpentOn)
	}
	if gotBody.TimeEntry.Comments != "chrome.exe - Bug report" {
		t.Errorf("comments = %q", gotBody.TimeEntry.Comments)
	}
	if gotBody.TimeEntry.ActivityID != 9 {
		t.Errorf("activity_id = %d, want 9", gotBody.TimeEntry.ActivityID)
	}
}

func TestSyncTimeEntryRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":["Invalid API key"]}`))
	}))
	defer srv.Close()

	r := newTestRedmine(t, srv.URL)
	result, err := r.SyncTimeEntry(context.Background(), testActivity(), "42")
	if err != nil {
		t.Fatalf("SyncTimeEntry returned transport error for HTTP rejection: %v", err)
	}

	if result.Success {
		t.Error("Success = true, want false")
	}
	if !strings.Contains(result.Message, "401") {
		t.Errorf("message %q does not carry the remote status", result.Message)
	}
	if !strings.Contains(result.Message, "Invalid API key") {
		t.Errorf("message %q does not carry the response body", result.Message)
	}
}

func TestSyncTimeEntryInvalidTicketID(t *testing.T) {
	r := newTestRedmine(t, "http://127.0.0.1:0")
	if _, err := r.SyncTimeEntry(context.Background(), testActivity(), "ABC-42"); err == nil {
		t.Error("non-numeric ticket id accepted")
	}
}

func TestSyncTimeEntryNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	r := newTestRedmine(t, srv.URL)
	if _, err := r.SyncTimeEntry(context.Background(), testActivity(), "42"); err == nil {
		t.Error("expected transport error")
	}
}

func TestTestConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/current.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-Redmine-API-Key") != "secret" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte(`{"user":{"id":3,"login":"dev"}}`))
	}))
	defer srv.Close()

	r := newTestRedmine(t, srv.URL)
	ok, err := r.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if !ok {
		t.Error("TestConnection = false, want true")
	}
}

func TestTestConnectionUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := newTestRedmine(t, srv.URL)
	ok, err := r.TestConnection(context.Background())
	if err == nil {
		t.Error("expected an error for 401")
	}
	if ok {
		t.Error("TestConnection = true, want false")
	}
}
