// Package divelog persists dive sessions and their events to SQLite. The
// store sits behind the control loop as an EventSink: writes are buffered
// and flushed by a background goroutine so a slow disk can never stall a
// tick. When the buffer is full events are dropped and counted.
package divelog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"auv-ng/internal/control"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	started_utc     TEXT NOT NULL,
	stopped_utc     TEXT,
	stop_reason     TEXT NOT NULL DEFAULT '',
	ticks           INTEGER NOT NULL DEFAULT 0,
	overruns        INTEGER NOT NULL DEFAULT 0,
	emergency_stops INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	at_utc     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, id);
`

const (
	queueDepth   = 256
	writeTimeout = 5 * time.Second
)

type Store struct {
	db *sql.DB

	ch      chan control.Event
	stopCh  chan struct{}
	done    chan struct{}
	close   sync.Once
	dropped atomic.Uint64
}

// Open opens (or creates) the dive-log database and starts the writer.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("divelog: open %s: %w", path, err)
	}
	// modernc sqlite allows one writer; a single connection avoids
	// SQLITE_BUSY between the writer goroutine and readers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("divelog: init schema: %w", err)
	}

	s := &Store{
		db:     db,
		ch:     make(chan control.Event, queueDepth),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.writer()
	return s, nil
}

// Record queues an event for persistence. Never blocks; events beyond the
// queue depth are dropped.
func (s *Store) Record(ev control.Event) {
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (s *Store) Dropped() uint64 { return s.dropped.Load() }

// Close drains queued events and closes the database.
func (s *Store) Close() error {
	var err error
	s.close.Do(func() {
		close(s.stopCh)
		<-s.done
		err = s.db.Close()
	})
	return err
}

func (s *Store) writer() {
	defer close(s.done)
	for {
		select {
		case ev := <-s.ch:
			s.write(ev)
		case <-s.stopCh:
			for {
				select {
				case ev := <-s.ch:
					s.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) write(ev control.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.persist(ctx, ev); err != nil {
		log.Printf("divelog: persist %s: %v", ev.Kind, err)
	}
}

func (s *Store) persist(ctx context.Context, ev control.Event) error {
	switch ev.Kind {
	case control.EventRunStarted:
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (id, started_utc) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
			ev.SessionID, ev.At.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	case control.EventRunStopped:
		if ev.Stats != nil {
			if _, err := s.db.ExecContext(ctx,
				`INSERT INTO sessions (id, started_utc) VALUES (?, ?) ON CONFLICT(id) DO NOTHING`,
				ev.SessionID, ev.Stats.StartedAt.UTC().Format(time.RFC3339Nano)); err != nil {
				return err
			}
			if _, err := s.db.ExecContext(ctx,
				`UPDATE sessions SET stopped_utc = ?, stop_reason = ?, ticks = ?, overruns = ?, emergency_stops = ? WHERE id = ?`,
				ev.Stats.StoppedAt.UTC().Format(time.RFC3339Nano), ev.Stats.Reason,
				ev.Stats.Ticks, ev.Stats.Overruns, ev.Stats.EmergencyStops, ev.SessionID); err != nil {
				return err
			}
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (session_id, at_utc, kind, detail) VALUES (?, ?, ?, ?)`,
		ev.SessionID, ev.At.UTC().Format(time.RFC3339Nano), ev.Kind, ev.Detail)
	return err
}
