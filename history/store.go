// Package history keeps every transcript and translation in a local SQLite
// database.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Kind string

const (
	KindTranscription Kind = "transcription"
	KindTranslation   Kind = "translation"
)

type Entry struct {
	ID           string
	SessionID    string
	Kind         Kind
	Language     string
	Text         string
	Deidentified string
	AudioSeconds float64
	CreatedAt    time.Time
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id TEXT PRIMARY KEY,
	sessionId TEXT NOT NULL,
	kind TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	deidentified TEXT NOT NULL DEFAULT '',
	audioSeconds REAL NOT NULL DEFAULT 0,
	createdAt REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_created ON entries(createdAt);
`

// Open opens or creates the database at path. The directory and file are
// created owner-only since entries hold clinical text.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create history file: %w", err)
	}
	f.Close()
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores e, filling in ID and CreatedAt when unset.
func (s *Store) Add(e *Entry) error {
	if e.Text == "" {
		return errors.New("history entry has no text")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO entries (id, sessionId, kind, language, text, deidentified, audioSeconds, createdAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, string(e.Kind), e.Language, e.Text, e.Deidentified, e.AudioSeconds, unixFromTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Latest returns the most recent entry of kind, or nil if there is none.
func (s *Store) Latest(kind Kind) (*Entry, error) {
	entries, err := s.query(`WHERE kind = ? ORDER BY createdAt DESC LIMIT 1`, string(kind))
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(limit int) ([]Entry, error) {
	return s.query(`ORDER BY createdAt DESC LIMIT ?`, limit)
}

// ForSession returns a session's entries in the order they were added.
func (s *Store) ForSession(sessionID string) ([]Entry, error) {
	return s.query(`WHERE sessionId = ? ORDER BY createdAt ASC`, sessionID)
}

func (s *Store) query(clause string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, sessionId, kind, language, text, deidentified, audioSeconds, createdAt
		FROM entries `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var createdAt float64
		if err := rows.Scan(&e.ID, &e.SessionID, &kind, &e.Language, &e.Text,
			&e.Deidentified, &e.AudioSeconds, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Kind = Kind(kind)
		e.CreatedAt = timeFromUnix(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
