package divelog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Session is one dive run. StoppedUTC is the zero time while the run is
// still in progress (or the daemon died before closing it out).
type Session struct {
	ID             string    `json:"id"`
	StartedUTC     time.Time `json:"started_utc"`
	StoppedUTC     time.Time `json:"stopped_utc,omitzero"`
	StopReason     string    `json:"stop_reason,omitempty"`
	Ticks          uint64    `json:"ticks"`
	Overruns       uint64    `json:"overruns"`
	EmergencyStops uint64    `json:"emergency_stops"`
}

// Duration is the recorded run length, zero for open sessions.
func (s Session) Duration() time.Duration {
	if s.StoppedUTC.IsZero() {
		return 0
	}
	return s.StoppedUTC.Sub(s.StartedUTC)
}

type Event struct {
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at_utc"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
}

// Totals aggregates across all recorded sessions.
type Totals struct {
	Sessions       int    `json:"sessions"`
	Ticks          uint64 `json:"ticks"`
	Overruns       uint64 `json:"overruns"`
	EmergencyStops uint64 `json:"emergency_stops"`
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_utc, stopped_utc, stop_reason, ticks, overruns, emergency_stops
		 FROM sessions ORDER BY started_utc DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("divelog: query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess    Session
			started string
			stopped sql.NullString
		)
		if err := rows.Scan(&sess.ID, &started, &stopped, &sess.StopReason,
			&sess.Ticks, &sess.Overruns, &sess.EmergencyStops); err != nil {
			return nil, fmt.Errorf("divelog: scan session: %w", err)
		}
		if sess.StartedUTC, err = parseUTC(started); err != nil {
			return nil, err
		}
		if stopped.Valid && stopped.String != "" {
			if sess.StoppedUTC, err = parseUTC(stopped.String); err != nil {
				return nil, err
			}
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// SessionEvents returns the full event history of one session in order.
func (s *Store) SessionEvents(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, at_utc, kind, detail FROM events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("divelog: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev Event
			at string
		)
		if err := rows.Scan(&ev.SessionID, &at, &ev.Kind, &ev.Detail); err != nil {
			return nil, fmt.Errorf("divelog: scan event: %w", err)
		}
		if ev.At, err = parseUTC(at); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Aggregate sums the session counters.
func (s *Store) Aggregate(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(ticks), 0), COALESCE(SUM(overruns), 0), COALESCE(SUM(emergency_stops), 0)
		 FROM sessions`).Scan(&t.Sessions, &t.Ticks, &t.Overruns, &t.EmergencyStops)
	if err != nil {
		return Totals{}, fmt.Errorf("divelog: aggregate: %w", err)
	}
	return t, nil
}

func parseUTC(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("divelog: bad timestamp %q: %w", s, err)
	}
	return ts, nil
}
