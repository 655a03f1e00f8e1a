// Package storage handles persistence of activity segments.
//
// Architecture:
// - One SQLite file, shared with the viewer process. WAL journaling so
//   the viewer can read while this process writes, plus a bounded busy
//   timeout so transient lock contention blocks briefly instead of
//   failing.
// - Two dimension tables (apps, titles) deduplicating identity strings,
//   referenced by the segments fact table.
// - In-process caches for dimension ids. A cache entry is added only
//   after the id was read back from the database, so the cache can never
//   disagree with what is persisted.
//
// Segments are append-only, with one exception: TruncateActiveSegmentsFrom
// retroactively shortens or deletes very recent active rows once idleness
// is discovered after the fact.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// appKey is the natural key of the apps dimension.
type appKey struct {
	exeName     string
	processPath string
}

// SegmentInsert is one consolidated segment ready to be persisted.
type SegmentInsert struct {
	StartTS       int64
	EndTS         int64
	AppID         sql.NullInt64
	TitleID       sql.NullInt64
	IsIdle        bool
	PID           sql.NullInt64
	PIDCreateTime sql.NullInt64
}

// Store handles persistence of segments and their dimension tables.
type Store struct {
	db         *sql.DB
	appCache   map[appKey]int64
	titleCache map[string]int64
}

// Open opens (creating if needed) the SQLite database at path and
// initializes the schema. Schema failures here are fatal to the caller;
// there is no point sampling without a store.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// _busy_timeout bounds how long a write blocks on the viewer's
	// transactions before the error is surfaced to the caller.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer in this process; one connection keeps the dimension
	// upsert-then-read-back pairs on the same connection.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:         db,
		appCache:   make(map[appKey]int64),
		titleCache: make(map[string]int64),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database tables and indexes.
// The DDL is the shared contract with the viewer process and must not
// drift from it.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS apps (
		id INTEGER PRIMARY KEY,
		exe_name TEXT NOT NULL,
		process_path TEXT NOT NULL,
		UNIQUE(exe_name, process_path)
	);

	CREATE TABLE IF NOT EXISTS titles (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS segments (
		id INTEGER PRIMARY KEY,
		start_ts INTEGER NOT NULL,
		end_ts INTEGER NOT NULL CHECK (end_ts >= start_ts),
		app_id INTEGER,
		title_id INTEGER,
		is_idle INTEGER NOT NULL DEFAULT 0,
		pid INTEGER,
		pid_create_time INTEGER,
		FOREIGN KEY(app_id) REFERENCES apps(id),
		FOREIGN KEY(title_id) REFERENCES titles(id)
	);

	CREATE INDEX IF NOT EXISTS idx_segments_start ON segments(start_ts);
	CREATE INDEX IF NOT EXISTS idx_segments_app_start ON segments(app_id, start_ts);
	CREATE INDEX IF NOT EXISTS idx_segments_idle_start ON segments(is_idle, start_ts);
	`

	_, err := s.db.Exec(schema)
	return err
}

// UpsertApp returns the id for an (exe name, process path) pair, creating
// the row on first observation. The viewer process may insert the same
// pair concurrently, so this is a conflict-tolerant insert followed by a
// read-back, never a blind insert.
func (s *Store) UpsertApp(exeName, processPath string) (int64, error) {
	key := appKey{exeName: exeName, processPath: processPath}
	if id, ok := s.appCache[key]; ok {
		return id, nil
	}

	_, err := s.db.Exec(`
		INSERT INTO apps (exe_name, process_path)
		VALUES (?, ?)
		ON CONFLICT(exe_name, process_path) DO NOTHING
	`, exeName, processPath)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert apps row: %w", err)
	}

	var id int64
	err = s.db.QueryRow(`
		SELECT id FROM apps WHERE exe_name = ? AND process_path = ?
	`, exeName, processPath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read apps.id after upsert: %w", err)
	}

	s.appCache[key] = id
	return id, nil
}

// UpsertTitle returns the id for a window title, creating the row on
// first observation.
func (s *Store) UpsertTitle(title string) (int64, error) {
	if id, ok := s.titleCache[title]; ok {
		return id, nil
	}

	_, err := s.db.Exec(`
		INSERT INTO titles (title)
		VALUES (?)
		ON CONFLICT(title) DO NOTHING
	`, title)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert titles row: %w", err)
	}

	var id int64
	err = s.db.QueryRow(`SELECT id FROM titles WHERE title = ?`, title).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read titles.id after upsert: %w", err)
	}

	s.titleCache[title] = id
	return id, nil
}

// InsertSegment appends one segment row. Zero or negative duration
// segments carry no information and are silently dropped.
func (s *Store) InsertSegment(segment *SegmentInsert) error {
	if segment.EndTS <= segment.StartTS {
		return nil
	}

	_, err := s.db.Exec(`
		INSERT INTO segments (start_ts, end_ts, app_id, title_id, is_idle, pid, pid_create_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, segment.StartTS, segment.EndTS, segment.AppID, segment.TitleID,
		boolToInt(segment.IsIdle), segment.PID, segment.PIDCreateTime)
	if err != nil {
		return fmt.Errorf("failed to insert segment: %w", err)
	}

	return nil
}

// TruncateActiveSegmentsFrom retroactively corrects active rows once
// idleness starting at cutoffTS is recognized: rows entirely at or after
// the cutoff are deleted, rows straddling it are trimmed to end exactly
// where idleness began. Both effects commit atomically. Idle rows and
// rows fully before the cutoff are never touched.
func (s *Store) TruncateActiveSegmentsFrom(cutoffTS int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin truncate transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		DELETE FROM segments
		WHERE is_idle = 0
		  AND start_ts >= ?
	`, cutoffTS)
	if err != nil {
		return fmt.Errorf("failed to delete active segments after idle cutoff: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE segments
		SET end_ts = ?
		WHERE is_idle = 0
		  AND start_ts < ?
		  AND end_ts > ?
	`, cutoffTS, cutoffTS, cutoffTS)
	if err != nil {
		return fmt.Errorf("failed to trim active segments at idle cutoff: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit truncate transaction: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}
