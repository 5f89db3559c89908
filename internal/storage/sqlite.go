package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite activity database. All access goes through a single
// serialized connection, so every read and write is a short critical section
// and the recorder's appends never interleave with each other.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the activity database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "activities.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Activities ---

// AppendActivity inserts a closed interval and returns its assigned id.
// Intervals are immutable once stored; there is no update or delete path.
func (s *Store) AppendActivity(a Activity) (int64, error) {
	var domain any
	if a.Domain != "" {
		domain = a.Domain
	}
	res, err := s.db.Exec(`
		INSERT INTO activities (process_name, window_title, domain, start_time, end_time, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ProcessName, a.WindowTitle, domain, a.StartTime, a.EndTime, a.DurationSeconds,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetActivity returns the activity with the given id, or ErrNotFound.
func (s *Store) GetActivity(id int64) (Activity, error) {
	var a Activity
	var domain sql.NullString
	err := s.db.QueryRow(`
		SELECT id, process_name, window_title, domain, start_time, end_time, duration_seconds
		FROM activities WHERE id = ?`, id,
	).Scan(&a.ID, &a.ProcessName, &a.WindowTitle, &domain, &a.StartTime, &a.EndTime, &a.DurationSeconds)
	if err == sql.ErrNoRows {
		return Activity{}, ErrNotFound
	}
	if err != nil {
		return Activity{}, err
	}
	a.Domain = domain.String
	return a, nil
}

// ActivitiesOn returns the activities whose start time falls within the given
// local day (YYYY-MM-DD), ascending by start time. The day is the inclusive
// range [date 00:00:00, date 23:59:59].
func (s *Store) ActivitiesOn(date string) ([]Activity, error) {
	startOfDay, endOfDay, err := dayBounds(date)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, process_name, window_title, domain, start_time, end_time, duration_seconds
		FROM activities
		WHERE start_time >= ? AND start_time <= ?
		ORDER BY start_time ASC`, startOfDay, endOfDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Activity
	for rows.Next() {
		var a Activity
		var domain sql.NullString
		if err := rows.Scan(&a.ID, &a.ProcessName, &a.WindowTitle, &domain, &a.StartTime, &a.EndTime, &a.DurationSeconds); err != nil {
			return nil, err
		}
		a.Domain = domain.String
		results = append(results, a)
	}
	return results, rows.Err()
}

// SummarizeByProcess groups the day's activities by process name, summing
// duration. Rows are sorted by total descending and each carries its share of
// the grouped total as a percentage.
func (s *Store) SummarizeByProcess(date string) ([]AppSummary, error) {
	startOfDay, endOfDay, err := dayBounds(date)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT process_name, SUM(duration_seconds) AS total
		FROM activities
		WHERE start_time >= ? AND start_time <= ?
		GROUP BY process_name
		ORDER BY total DESC`, startOfDay, endOfDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []AppSummary
	var grandTotal int64
	for rows.Next() {
		var s AppSummary
		if err := rows.Scan(&s.ProcessName, &s.TotalSeconds); err != nil {
			return nil, err
		}
		grandTotal += s.TotalSeconds
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		summaries[i].Percentage = percentage(summaries[i].TotalSeconds, grandTotal)
	}
	return summaries, nil
}

// SummarizeByDomain groups the day's browser activities by domain, summing
// duration. Activities without a domain are excluded from the grouping, so
// percentages are shares of the domain-bearing total only.
func (s *Store) SummarizeByDomain(date string) ([]DomainSummary, error) {
	startOfDay, endOfDay, err := dayBounds(date)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT domain, SUM(duration_seconds) AS total
		FROM activities
		WHERE start_time >= ? AND start_time <= ?
		  AND domain IS NOT NULL AND domain != ''
		GROUP BY domain
		ORDER BY total DESC`, startOfDay, endOfDay,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []DomainSummary
	var grandTotal int64
	for rows.Next() {
		var s DomainSummary
		if err := rows.Scan(&s.Domain, &s.TotalSeconds); err != nil {
			return nil, err
		}
		grandTotal += s.TotalSeconds
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		summaries[i].Percentage = percentage(summaries[i].TotalSeconds, grandTotal)
	}
	return summaries, nil
}

func dayBounds(date string) (string, string, error) {
	if !validDate(date) {
		return "", "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}
	return date + "T00:00:00", date + "T23:59:59", nil
}

func validDate(date string) bool {
	if len(date) != 10 || date[4] != '-' || date[7] != '-' {
		return false
	}
	for i, c := range date {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func percentage(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100.0
}
