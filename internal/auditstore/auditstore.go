// Package auditstore persists notification-delivery history and
// configuration audit state to a local SQLite database, adapted from the
// teacher's internal/store package (which kept job records in SQLite —
// superseded here by the Redis queue, spec.md §4.3).
package auditstore

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	event TEXT NOT NULL,
	sent_at TEXT NOT NULL,
	success INTEGER NOT NULL,
	error TEXT
);

CREATE TABLE IF NOT EXISTS config_audit (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_job_id ON notifications(job_id);
`

// Keys used in config_audit (spec.md §6).
const (
	KeyConfigCurrent      = "config:current"
	KeyConfigHash         = "config:hash"
	KeyConfigLastValidated = "config:last_validated"
)

// Store is a SQLite-backed notification ledger and config audit trail.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates the database file (and parent directory) if missing and
// applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create auditstore directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open auditstore database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create auditstore schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordNotification appends one delivery attempt to the ledger.
func (s *Store) RecordNotification(jobID, event string, sentAt time.Time, success bool, notifyErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	errText := ""
	if notifyErr != nil {
		errText = notifyErr.Error()
	}
	_, err := s.db.Exec(
		`INSERT INTO notifications (job_id, event, sent_at, success, error) VALUES (?, ?, ?, ?, ?)`,
		jobID, event, sentAt.UTC().Format(time.RFC3339), boolToInt(success), errText,
	)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

// SetConfigAudit upserts a config_audit key (config:current holds the
// last-loaded raw YAML, config:hash its content hash, and
// config:last_validated the RFC3339 timestamp of the last successful
// validation — spec.md §6).
func (s *Store) SetConfigAudit(key, value string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO config_audit (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("set config audit %s: %w", key, err)
	}
	return nil
}

// RecordConfigSnapshot stores the raw rendered config, its content hash,
// and the current time as the last-validated timestamp (spec.md §6).
func (s *Store) RecordConfigSnapshot(raw []byte, now time.Time) error {
	sum := sha256.Sum256(raw)
	if err := s.SetConfigAudit(KeyConfigCurrent, string(raw), now); err != nil {
		return err
	}
	if err := s.SetConfigAudit(KeyConfigHash, hex.EncodeToString(sum[:]), now); err != nil {
		return err
	}
	return s.SetConfigAudit(KeyConfigLastValidated, now.UTC().Format(time.RFC3339), now)
}

// GetConfigAudit returns the current value for key, or "" if unset.
func (s *Store) GetConfigAudit(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM config_audit WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get config audit %s: %w", key, err)
	}
	return value, nil
}

// RecentNotifications returns the most recent limit notification records
// for a job, newest first.
func (s *Store) RecentNotifications(jobID string, limit int) ([]NotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT event, sent_at, success, error FROM notifications
		 WHERE job_id = ? ORDER BY id DESC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []NotificationRecord
	for rows.Next() {
		var rec NotificationRecord
		var success int
		if err := rows.Scan(&rec.Event, &rec.SentAt, &success, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		rec.Success = success != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// NotificationRecord is one delivered (or failed) webhook attempt.
type NotificationRecord struct {
	Event   string
	SentAt  string
	Success bool
	Error   string
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
