package storage

import (
	"math"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestIndexesExist verifies that the activity indexes are created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_activities_start_time", "idx_activities_domain"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestAppendAndGetActivity(t *testing.T) {
	s := openTestStore(t)

	want := Activity{
		ProcessName:     "chrome.exe",
		WindowTitle:     "Bug report",
		Domain:          "tracker.example.com",
		StartTime:       "2024-01-01T10:00:00",
		EndTime:         "2024-01-01T10:30:00",
		DurationSeconds: 1800,
	}
	id, err := s.AppendActivity(want)
	if err != nil {
		t.Fatalf("AppendActivity: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := s.GetActivity(id)
	if err != nil {
		t.Fatalf("GetActivity: %v", err)
	}
	want.ID = id
	if got != want {
		t.Errorf("GetActivity = %+v, want %+v", got, want)
	}
}

// TestActivityIDsMonotonic verifies ids are assigned in insertion order.
func TestActivityIDsMonotonic(t *testing.T) {
	s := openTestStore(t)

	var prev int64
	for i := 0; i < 3; i++ {
		id, err := s.AppendActivity(Activity{
			ProcessName: "code.exe", WindowTitle: "main.go",
			StartTime: "2024-01-01T10:00:00", EndTime: "2024-01-01T10:00:05", DurationSeconds: 5,
		})
		if err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
		if id <= prev {
			t.Errorf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestGetActivityNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetActivity(999); err != ErrNotFound {
		t.Errorf("GetActivity(999) error = %v, want ErrNotFound", err)
	}
}

// TestActivitiesOnBoundaries checks the inclusive day-range semantics: a
// record starting at 23:59:59 belongs to the day, one at 00:00:00 the next
// day does not.
func TestActivitiesOnBoundaries(t *testing.T) {
	s := openTestStore(t)

	records := []Activity{
		{ProcessName: "a.exe", WindowTitle: "early", StartTime: "2024-01-01T00:00:00", EndTime: "2024-01-01T00:01:00", DurationSeconds: 60},
		{ProcessName: "b.exe", WindowTitle: "late", StartTime: "2024-01-01T23:59:59", EndTime: "2024-01-02T00:00:30", DurationSeconds: 31},
		{ProcessName: "c.exe", WindowTitle: "next day", StartTime: "2024-01-02T00:00:00", EndTime: "2024-01-02T00:01:00", DurationSeconds: 60},
	}
	for _, r := range records {
		if _, err := s.AppendActivity(r); err != nil {
			t.Fatalf("AppendActivity(%q): %v", r.WindowTitle, err)
		}
	}

	got, err := s.ActivitiesOn("2024-01-01")
	if err != nil {
		t.Fatalf("ActivitiesOn: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d activities, want 2", len(got))
	}
	if got[0].WindowTitle != "early" || got[1].WindowTitle != "late" {
		t.Errorf("wrong order or rows: %q, %q", got[0].WindowTitle, got[1].WindowTitle)
	}
}

func TestActivitiesOnInvalidDate(t *testing.T) {
	s := openTestStore(t)

	for _, date := range []string{"", "2024-1-1", "20240101", "2024-01-01T10:00:00", "yyyy-mm-dd"} {
		if _, err := s.ActivitiesOn(date); err == nil {
			t.Errorf("ActivitiesOn(%q) succeeded, want error", date)
		}
	}
}

// TestSummarizeByProcess verifies descending order by total and that
// percentages sum to 100 when the grouped total is positive.
func TestSummarizeByProcess(t *testing.T) {
	s := openTestStore(t)

	records := []Activity{
		{ProcessName: "code.exe", WindowTitle: "w", StartTime: "2024-01-01T09:00:00", EndTime: "2024-01-01T10:00:00", DurationSeconds: 3600},
		{ProcessName: "chrome.exe", WindowTitle: "w", StartTime: "2024-01-01T10:00:00", EndTime: "2024-01-01T10:20:00", DurationSeconds: 1200},
		{ProcessName: "code.exe", WindowTitle: "w2", StartTime: "2024-01-01T11:00:00", EndTime: "2024-01-01T11:20:00", DurationSeconds: 1200},
	}
	for _, r := range records {
		if _, err := s.AppendActivity(r); err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
	}

	got, err := s.SummarizeByProcess("2024-01-01")
	if err != nil {
		t.Fatalf("SummarizeByProcess: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got[0].ProcessName != "code.exe" || got[0].TotalSeconds != 4800 {
		t.Errorf("row 0 = %+v, want code.exe/4800", got[0])
	}
	if got[1].ProcessName != "chrome.exe" || got[1].TotalSeconds != 1200 {
		t.Errorf("row 1 = %+v, want chrome.exe/1200", got[1])
	}

	var sum float64
	for _, r := range got {
		sum += r.Percentage
	}
	if math.Abs(sum-100.0) > 0.01 {
		t.Errorf("percentages sum to %f, want 100", sum)
	}
}

func TestSummarizeByProcessEmptyDay(t *testing.T) {
	s := openTestStore(t)

	got, err := s.SummarizeByProcess("2024-01-01")
	if err != nil {
		t.Fatalf("SummarizeByProcess: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d rows, want 0", len(got))
	}
}

// TestSummarizeByDomain verifies that rows without a domain are excluded and
// percentages are shares of the domain-bearing total only.
func TestSummarizeByDomain(t *testing.T) {
	s := openTestStore(t)

	records := []Activity{
		{ProcessName: "chrome.exe", WindowTitle: "Bug report", Domain: "tracker.example.com", StartTime: "2024-01-01T10:00:00", EndTime: "2024-01-01T10:30:00", DurationSeconds: 1800},
		{ProcessName: "code.exe", WindowTitle: "main.go", StartTime: "2024-01-01T11:00:00", EndTime: "2024-01-01T12:00:00", DurationSeconds: 3600},
	}
	for _, r := range records {
		if _, err := s.AppendActivity(r); err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
	}

	got, err := s.SummarizeByDomain("2024-01-01")
	if err != nil {
		t.Fatalf("SummarizeByDomain: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	if got[0].Domain != "tracker.example.com" || got[0].TotalSeconds != 1800 {
		t.Errorf("row 0 = %+v", got[0])
	}
	if math.Abs(got[0].Percentage-100.0) > 0.01 {
		t.Errorf("percentage = %f, want 100", got[0].Percentage)
	}
}
