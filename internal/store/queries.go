package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Error event operations

// InsertErrorEvent inserts a completed error event row.
func (s *Store) InsertErrorEvent(ev *ErrorEvent) error {
	query := `
		INSERT INTO error_events
		(error_id, timestamp, origin, command, exit_code, severity, recovery, trace_path, state_path, notified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		ev.ErrorID,
		ev.Timestamp.Format(time.RFC3339Nano),
		ev.Origin,
		ev.Command,
		ev.ExitCode,
		ev.Severity,
		ev.Recovery,
		ev.TracePath,
		ev.StatePath,
		ev.Notified,
	)
	if err != nil {
		return fmt.Errorf("failed to insert error event %s: %w", ev.ErrorID, err)
	}
	return nil
}

// GetErrorEvent retrieves an event by its error ID.
func (s *Store) GetErrorEvent(errorID string) (*ErrorEvent, error) {
	query := `
		SELECT error_id, timestamp, origin, command, exit_code, severity, recovery, trace_path, state_path, notified
		FROM error_events
		WHERE error_id = ?
	`
	ev, err := scanEvent(s.db.QueryRow(query, errorID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("error event %s not found", errorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get error event %s: %w", errorID, err)
	}
	return ev, nil
}

// ListErrorEvents returns the most recent events, newest first.
func (s *Store) ListErrorEvents(limit int) ([]*ErrorEvent, error) {
	query := `
		SELECT error_id, timestamp, origin, command, exit_code, severity, recovery, trace_path, state_path, notified
		FROM error_events
		ORDER BY timestamp DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list error events: %w", err)
	}
	defer rows.Close()

	var events []*ErrorEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan error event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountErrorEvents returns the total number of recorded events.
func (s *Store) CountErrorEvents() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM error_events").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count error events: %w", err)
	}
	return n, nil
}

// Rotation operations

// InsertRotation records a completed rotation pass.
func (s *Store) InsertRotation(r *Rotation) error {
	query := `
		INSERT INTO rotations (timestamp, file, rotated_to, pruned_count)
		VALUES (?, ?, ?, ?)
	`
	res, err := s.db.Exec(query,
		r.Timestamp.Format(time.RFC3339Nano),
		r.File,
		r.RotatedTo,
		r.PrunedCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rotation for %s: %w", r.File, err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

// ListRotations returns the most recent rotation passes, newest first.
func (s *Store) ListRotations(limit int) ([]*Rotation, error) {
	query := `
		SELECT id, timestamp, file, rotated_to, pruned_count
		FROM rotations
		ORDER BY timestamp DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rotations: %w", err)
	}
	defer rows.Close()

	var rotations []*Rotation
	for rows.Next() {
		var r Rotation
		var ts string
		if err := rows.Scan(&r.ID, &ts, &r.File, &r.RotatedTo, &r.PrunedCount); err != nil {
			return nil, fmt.Errorf("failed to scan rotation: %w", err)
		}
		r.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rotation timestamp: %w", err)
		}
		rotations = append(rotations, &r)
	}
	return rotations, rows.Err()
}

// LastRotation returns the most recent rotation pass for a file, or nil if
// the file has never rotated.
func (s *Store) LastRotation(file string) (*Rotation, error) {
	query := `
		SELECT id, timestamp, file, rotated_to, pruned_count
		FROM rotations
		WHERE file = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`
	var r Rotation
	var ts string
	err := s.db.QueryRow(query, file).Scan(&r.ID, &ts, &r.File, &r.RotatedTo, &r.PrunedCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last rotation for %s: %w", file, err)
	}
	r.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rotation timestamp: %w", err)
	}
	return &r, nil
}

// scanner lets scanEvent work for both QueryRow and Query results.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*ErrorEvent, error) {
	var ev ErrorEvent
	var ts string
	err := row.Scan(
		&ev.ErrorID,
		&ts,
		&ev.Origin,
		&ev.Command,
		&ev.ExitCode,
		&ev.Severity,
		&ev.Recovery,
		&ev.TracePath,
		&ev.StatePath,
		&ev.Notified,
	)
	if err != nil {
		return nil, err
	}
	ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
	}
	return &ev, nil
}
