// Package storage persists speed tests and complaint records in SQLite.
// Both tables are append-only: rows are inserted once and never updated.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/phelix001/ISPFCCComplainer/model"
)

// Timestamps are stored as naive local time so that date() comparisons in
// SQLite match the local calendar day, not a UTC or rolling 24h window.
const timeLayout = "2006-01-02 15:04:05"

const dateLayout = "2006-01-02"

// Store wraps the SQLite database holding speed test history and complaints.
type Store struct {
	db   *sql.DB
	once sync.Once
	err  error
}

// Open opens (or creates) the database at path. Tables are created lazily on
// first use.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite handles one writer at a time.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureTables(ctx context.Context) error {
	s.once.Do(func() {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS speed_tests (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp TEXT NOT NULL,
				download_mbps REAL NOT NULL,
				upload_mbps REAL NOT NULL,
				ping_ms REAL NOT NULL,
				server TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS complaints (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				timestamp TEXT NOT NULL,
				speed_test_id INTEGER NOT NULL,
				complaint_text TEXT NOT NULL,
				status TEXT NOT NULL,
				FOREIGN KEY (speed_test_id) REFERENCES speed_tests(id)
			)`,
		}
		for _, stmt := range stmts {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				s.err = fmt.Errorf("create tables: %w", err)
				return
			}
		}
	})
	return s.err
}

// SaveSpeedTest inserts a speed test and returns its assigned id. IDs are
// monotonically increasing; float fields keep full precision.
func (s *Store) SaveSpeedTest(ctx context.Context, t *model.SpeedTest) (int64, error) {
	if err := s.ensureTables(ctx); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO speed_tests (timestamp, download_mbps, upload_mbps, ping_ms, server)
		 VALUES (?, ?, ?, ?, ?)`,
		t.Timestamp.Format(timeLayout), t.DownloadMbps, t.UploadMbps, t.PingMs, t.Server,
	)
	if err != nil {
		return 0, fmt.Errorf("save speed test: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save speed test: %w", err)
	}
	t.ID = id
	return id, nil
}

// SaveComplaint inserts a complaint record and returns its assigned id. The
// speed_test_id reference is not validated for existence: the table is a
// best-effort audit trail, not referential integrity.
func (s *Store) SaveComplaint(ctx context.Context, c *model.Complaint) (int64, error) {
	if err := s.ensureTables(ctx); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO complaints (timestamp, speed_test_id, complaint_text, status)
		 VALUES (?, ?, ?, ?)`,
		c.Timestamp.Format(timeLayout), c.SpeedTestID, c.Text, string(c.Status),
	)
	if err != nil {
		return 0, fmt.Errorf("save complaint: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save complaint: %w", err)
	}
	c.ID = id
	return id, nil
}

// SpeedTestsForDate returns every speed test whose local calendar date matches
// date, ascending by timestamp.
func (s *Store) SpeedTestsForDate(ctx context.Context, date time.Time) ([]model.SpeedTest, error) {
	if err := s.ensureTables(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, download_mbps, upload_mbps, ping_ms, server
		 FROM speed_tests
		 WHERE date(timestamp) = ?
		 ORDER BY timestamp ASC`,
		date.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query speed tests for date: %w", err)
	}
	defer rows.Close()
	return scanSpeedTests(rows)
}

// RecentSpeedTests returns up to limit speed tests, newest first.
func (s *Store) RecentSpeedTests(ctx context.Context, limit int) ([]model.SpeedTest, error) {
	if err := s.ensureTables(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, download_mbps, upload_mbps, ping_ms, server
		 FROM speed_tests
		 ORDER BY timestamp DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent speed tests: %w", err)
	}
	defer rows.Close()
	return scanSpeedTests(rows)
}

// SpeedTestByID returns the speed test with the given id, or nil when absent.
func (s *Store) SpeedTestByID(ctx context.Context, id int64) (*model.SpeedTest, error) {
	if err := s.ensureTables(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, timestamp, download_mbps, upload_mbps, ping_ms, server
		 FROM speed_tests
		 WHERE id = ?`,
		id,
	)
	t, err := scanSpeedTestRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query speed test %d: %w", id, err)
	}
	return t, nil
}

// RecentComplaints returns up to limit complaint records, newest first.
func (s *Store) RecentComplaints(ctx context.Context, limit int) ([]model.Complaint, error) {
	if err := s.ensureTables(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, speed_test_id, complaint_text, status
		 FROM complaints
		 ORDER BY timestamp DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent complaints: %w", err)
	}
	defer rows.Close()

	var out []model.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// LatestComplaintForDate returns the newest complaint on the given local
// calendar date whose status is in statuses, or nil when there is none.
// Callers pass the successful statuses only, so a prior dry run never blocks
// a later real filing for the same day.
func (s *Store) LatestComplaintForDate(ctx context.Context, date time.Time, statuses []model.ComplaintStatus) (*model.Complaint, error) {
	if err := s.ensureTables(ctx); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(statuses)+1)
	args = append(args, date.Format(dateLayout))
	for _, st := range statuses {
		args = append(args, string(st))
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, timestamp, speed_test_id, complaint_text, status
		 FROM complaints
		 WHERE date(timestamp) = ? AND status IN (`+placeholders+`)
		 ORDER BY timestamp DESC
		 LIMIT 1`,
		args...,
	)

	var c model.Complaint
	var ts, status string
	err := row.Scan(&c.ID, &ts, &c.SpeedTestID, &c.Text, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest complaint: %w", err)
	}
	c.Timestamp, err = parseTimestamp(ts)
	if err != nil {
		return nil, err
	}
	c.Status = model.ComplaintStatus(status)
	return &c, nil
}

func scanSpeedTests(rows *sql.Rows) ([]model.SpeedTest, error) {
	var out []model.SpeedTest
	for rows.Next() {
		var t model.SpeedTest
		var ts string
		if err := rows.Scan(&t.ID, &ts, &t.DownloadMbps, &t.UploadMbps, &t.PingMs, &t.Server); err != nil {
			return nil, fmt.Errorf("scan speed test: %w", err)
		}
		parsed, err := parseTimestamp(ts)
		if err != nil {
			return nil, err
		}
		t.Timestamp = parsed
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanSpeedTestRow(row *sql.Row) (*model.SpeedTest, error) {
	var t model.SpeedTest
	var ts string
	if err := row.Scan(&t.ID, &ts, &t.DownloadMbps, &t.UploadMbps, &t.PingMs, &t.Server); err != nil {
		return nil, err
	}
	parsed, err := parseTimestamp(ts)
	if err != nil {
		return nil, err
	}
	t.Timestamp = parsed
	return &t, nil
}

func scanComplaint(rows *sql.Rows) (*model.Complaint, error) {
	var c model.Complaint
	var ts, status string
	if err := rows.Scan(&c.ID, &ts, &c.SpeedTestID, &c.Text, &status); err != nil {
		return nil, fmt.Errorf("scan complaint: %w", err)
	}
	parsed, err := parseTimestamp(ts)
	if err != nil {
		return nil, err
	}
	c.Timestamp = parsed
	c.Status = model.ComplaintStatus(status)
	return &c, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
