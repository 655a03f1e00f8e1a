package storage

import (
	"database/sql"
	"fmt"
	"os"
)

// SegmentRecord is one persisted segment row.
type SegmentRecord struct {
	ID            int64
	StartTS       int64
	EndTS         int64
	AppID         sql.NullInt64
	TitleID       sql.NullInt64
	IsIdle        bool
	PID           sql.NullInt64
	PIDCreateTime sql.NullInt64
}

// SegmentsByRange retrieves segments whose span intersects [startTS, endTS).
func (s *Store) SegmentsByRange(startTS, endTS int64) ([]SegmentRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, start_ts, end_ts, app_id, title_id, is_idle, pid, pid_create_time
		FROM segments
		WHERE end_ts > ? AND start_ts < ?
		ORDER BY start_ts ASC
	`, startTS, endTS)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	var records []SegmentRecord
	for rows.Next() {
		var r SegmentRecord
		var isIdle int64

		err := rows.Scan(&r.ID, &r.StartTS, &r.EndTS, &r.AppID, &r.TitleID,
			&isIdle, &r.PID, &r.PIDCreateTime)
		if err != nil {
			return nil, err
		}

		r.IsIdle = isIdle != 0
		records = append(records, r)
	}

	return records, rows.Err()
}

// AppTotal is the summed active duration for one app in a range.
type AppTotal struct {
	ExeName     string
	ProcessPath string
	Seconds     int64
}

// TotalsByApp sums active time per app over [startTS, endTS), most used
// first. This is the same aggregation the viewer runs; the stats
// subcommand uses it for a quick look without opening the viewer.
func (s *Store) TotalsByApp(startTS, endTS int64) ([]AppTotal, error) {
	rows, err := s.db.Query(`
		SELECT a.exe_name, a.process_path, SUM(s.end_ts - s.start_ts) AS total
		FROM segments s
		JOIN apps a ON a.id = s.app_id
		WHERE s.is_idle = 0
		  AND s.end_ts > ? AND s.start_ts < ?
		GROUP BY a.id
		ORDER BY total DESC
	`, startTS, endTS)
	if err != nil {
		return nil, fmt.Errorf("failed to query app totals: %w", err)
	}
	defer rows.Close()

	var totals []AppTotal
	for rows.Next() {
		var t AppTotal
		if err := rows.Scan(&t.ExeName, &t.ProcessPath, &t.Seconds); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}

	return totals, rows.Err()
}

// Stats holds storage statistics.
type Stats struct {
	TotalSegments int64
	TotalApps     int64
	TotalTitles   int64
	DatabaseSize  int64
}

// StatsFor returns statistics about the store at path.
func (s *Store) StatsFor(path string) (Stats, error) {
	var stats Stats

	row := s.db.QueryRow("SELECT COUNT(*) FROM segments")
	if err := row.Scan(&stats.TotalSegments); err != nil {
		return stats, err
	}

	row = s.db.QueryRow("SELECT COUNT(*) FROM apps")
	if err := row.Scan(&stats.TotalApps); err != nil {
		return stats, err
	}

	row = s.db.QueryRow("SELECT COUNT(*) FROM titles")
	if err := row.Scan(&stats.TotalTitles); err != nil {
		return stats, err
	}

	if info, err := os.Stat(path); err == nil {
		stats.DatabaseSize = info.Size()
	}

	return stats, nil
}
