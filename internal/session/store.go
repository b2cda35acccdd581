package session

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"idscan/internal/model"
)

// ErrNoSession is returned for mutations that require an active session.
var ErrNoSession = errors.New("no active session")

// ErrSessionActive is returned by Start while a session is in progress; it
// must be reset before a new one can begin.
var ErrSessionActive = errors.New("session already active")

// Store owns the active session. It keeps the authoritative copy in memory
// and writes through to a local SQLite file on every mutation, so a restart
// never loses already-scanned records. Only the ordered record list is
// persisted; the seen-identifier set is derived from it on load and can
// therefore never drift.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	session *model.Session
	seen    map[string]struct{}
}

// Open opens (creating if needed) the session database at path and loads
// any persisted session. A session that cannot be read degrades to "no
// session" rather than failing startup: a corrupt file is set aside as
// <path>.corrupt and a fresh database takes its place.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := openDB(path)
	if err != nil {
		log.Printf("session db unusable, starting fresh: %v", err)
		setAside(path)
		if db, err = openDB(path); err != nil {
			return nil, err
		}
	}

	s := &Store{db: db}
	if err := s.load(); err != nil {
		log.Printf("persisted session unreadable, starting fresh: %v", err)
		s.session = nil
		s.seen = nil
	}
	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// setAside renames an unreadable database file out of the way, dropping any
// WAL sidecar files with it.
func setAside(path string) {
	if err := os.Rename(path, path+".corrupt"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("move corrupt db aside failed, removing: %v", err)
		os.Remove(path)
	}
	os.Remove(path + "-wal")
	os.Remove(path + "-shm")
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS session (
		id        INTEGER PRIMARY KEY CHECK (id = 1),
		slot_name TEXT NOT NULL,
		saved_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		seq          INTEGER PRIMARY KEY AUTOINCREMENT,
		id           TEXT NOT NULL,
		student_name TEXT NOT NULL,
		identifier   TEXT NOT NULL,
		slot_name    TEXT NOT NULL,
		capture_date TEXT NOT NULL,
		capture_time TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_identifier ON records(identifier);
	`
	_, err := db.Exec(schema)
	return err
}

// load reconstructs the in-memory session from disk. The dedup set is
// rebuilt from the record rows, never read from a stored copy.
func (s *Store) load() error {
	var slot string
	var savedAt time.Time
	err := s.db.QueryRow(`SELECT slot_name, saved_at FROM session WHERE id = 1`).Scan(&slot, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	rows, err := s.db.Query(`
		SELECT id, student_name, identifier, slot_name, capture_date, capture_time
		FROM records ORDER BY seq DESC`)
	if err != nil {
		return err
	}
	defer rows.Close()

	sess := &model.Session{SlotName: slot, LastSaved: savedAt}
	for rows.Next() {
		var r model.AttendanceRecord
		if err := rows.Scan(&r.ID, &r.StudentName, &r.Identifier, &r.SlotName, &r.CaptureDate, &r.CaptureTime); err != nil {
			return err
		}
		sess.Records = append(sess.Records, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.session = sess
	s.seen = sess.SeenIdentifiers()
	s.mu.Unlock()
	return nil
}

// Start begins a new session for the given slot, overwriting any stale
// persisted one. Fails with ErrSessionActive while a session is in
// progress. The slot name is immutable for the session's lifetime.
func (s *Store) Start(slot string) error {
	if slot == "" {
		return errors.New("slot name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return ErrSessionActive
	}

	now := time.Now().UTC()
	err := s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM records`); err != nil {
			return err
		}
		_, err := tx.Exec(`
			INSERT INTO session (id, slot_name, saved_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET slot_name = excluded.slot_name, saved_at = excluded.saved_at`,
			slot, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("persist session start: %w", err)
	}

	s.session = &model.Session{SlotName: slot, LastSaved: now}
	s.seen = make(map[string]struct{})
	return nil
}

// Append records one attendance entry. The record and its identifier enter
// the record list and the dedup set under the same lock, so the two cannot
// diverge. A failed disk write is logged and the in-memory state still
// advances (best effort persistence; the entry survives until restart).
func (s *Store) Append(rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return model.AttendanceRecord{}, ErrNoSession
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	err := s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO records (id, student_name, identifier, slot_name, capture_date, capture_time)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.StudentName, rec.Identifier, rec.SlotName, rec.CaptureDate, rec.CaptureTime); err != nil {
			return err
		}
		_, err := tx.Exec(`UPDATE session SET saved_at = ? WHERE id = 1`, now)
		return err
	})
	if err != nil {
		log.Printf("persist record %s failed: %v", rec.Identifier, err)
	} else {
		s.session.LastSaved = now
	}

	s.session.Records = append([]model.AttendanceRecord{rec}, s.session.Records...)
	s.seen[rec.Identifier] = struct{}{}
	return rec, nil
}

// Seen reports whether the normalized identifier was already scanned this
// session.
func (s *Store) Seen(identifier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[identifier]
	return ok
}

// Slot returns the active session's slot name, or "" when absent.
func (s *Store) Slot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ""
	}
	return s.session.SlotName
}

// Active reports whether a session is in progress.
func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Snapshot returns a copy of the current session, or nil when absent.
func (s *Store) Snapshot() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	cp.Records = append([]model.AttendanceRecord(nil), s.session.Records...)
	return &cp
}

// Count returns the number of records in the active session.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return 0
	}
	return len(s.session.Records)
}

// Clear ends the session and removes all persisted state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM records`); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM session`)
		return err
	})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.session = nil
	s.seen = nil
	return nil
}

// Healthy verifies the database file is still writable.
func (s *Store) Healthy() bool {
	return s.db.Ping() == nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) inTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
