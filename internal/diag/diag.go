// Package diag is an optional, asynchronous diagnostics sink: it persists
// per-session stage span timings (decoder restarts, AlignAtt fire
// decisions, LocalAgreement commits) to Postgres for offline debugging.
// It sits off the hot path entirely — every Tracer method is nil-safe and
// RecordSpan never blocks (a span is dropped when the buffer is full),
// adapted from the teacher's buffered-channel trace writer.
package diag

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
)

const (
	channelBuffer  = 64
	maxFieldLength = 500
)

// Span is one recorded stage event.
type Span struct {
	ID        string
	SessionID string
	Stage     string
	StartedAt time.Time
	DurationMs float64
	Detail    string
	Status    string
}

// Store persists spans to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and ensures the spans table exists.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("diag: open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("diag: ping: %w", err)
	}
	if _, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS spans (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			duration_ms DOUBLE PRECISION NOT NULL,
			detail TEXT,
			status TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("diag: create table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) insert(sp Span) error {
	_, err := s.db.Exec(
		`INSERT INTO spans (id, session_id, stage, started_at, duration_ms, detail, status) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		sp.ID, sp.SessionID, sp.Stage, sp.StartedAt.UTC(), sp.DurationMs, sp.Detail, sp.Status,
	)
	return err
}

// ListSpans returns the most recent spans for a session, newest first.
func (s *Store) ListSpans(ctx context.Context, sessionID string, limit int) ([]Span, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, stage, started_at, duration_ms, detail, status FROM spans WHERE session_id=$1 ORDER BY started_at DESC LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("diag: list spans: %w", err)
	}
	defer rows.Close()

	var out []Span
	for rows.Next() {
		var sp Span
		if err = rows.Scan(&sp.ID, &sp.SessionID, &sp.Stage, &sp.StartedAt, &sp.DurationMs, &sp.Detail, &sp.Status); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// Tracer writes spans asynchronously via a buffered channel and a
// background drain goroutine, exactly the teacher's Tracer shape. All
// methods are nil-safe so a disabled diagnostics sink costs nothing.
type Tracer struct {
	store     *Store
	sessionID string
	ch        chan Span
	done      chan struct{}
}

// NewTracer starts a tracer bound to a session. Callers must call Close
// to flush pending writes and stop the background goroutine.
func NewTracer(store *Store, sessionID string) *Tracer {
	if store == nil {
		return nil
	}
	t := &Tracer{store: store, sessionID: sessionID, ch: make(chan Span, channelBuffer), done: make(chan struct{})}
	go t.drain()
	return t
}

func (t *Tracer) drain() {
	defer close(t.done)
	for sp := range t.ch {
		if err := t.store.insert(sp); err != nil {
			slog.Warn("diag span write failed", "error", err)
		}
	}
}

// RecordSpan enqueues a completed span for async persistence, dropping it
// with a warning when the buffer is full.
func (t *Tracer) RecordSpan(stage string, startedAt time.Time, durationMs float64, detail, status string) {
	if t == nil {
		return
	}
	sp := Span{
		ID:         uuid.NewString(),
		SessionID:  t.sessionID,
		Stage:      stage,
		StartedAt:  startedAt,
		DurationMs: durationMs,
		Detail:     truncate(detail, maxFieldLength),
		Status:     status,
	}
	select {
	case t.ch <- sp:
	default:
		slog.Warn("diag span dropped, buffer full", "session_id", t.sessionID, "stage", stage)
	}
}

// Close drains pending writes and stops the background goroutine.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	close(t.ch)
	<-t.done
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
