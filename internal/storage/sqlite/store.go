// Package sqlite provides the SQLite-backed anti-cheat event journal.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/interview-gateway/internal/domain"
)

// DefaultListLimit caps ListEvents when no limit is given.
const DefaultListLimit = 1000

// EventJournal appends anti-cheat events to a SQLite database.
type EventJournal struct {
	db *sql.DB
}

// New opens (creating if needed) the journal at dbPath.
func New(dbPath string) (*EventJournal, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	j := &EventJournal{db: db}

	// Initialize schema
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return j, nil
}

func (j *EventJournal) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS anticheat_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			candidate_id TEXT NOT NULL DEFAULT '',
			event_type TEXT NOT NULL,
			details TEXT,
			occurred_at TIMESTAMP NOT NULL,
			received_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_anticheat_events_candidate ON anticheat_events(candidate_id)`,
		`CREATE INDEX IF NOT EXISTS idx_anticheat_events_type ON anticheat_events(event_type)`,
	}

	for _, stmt := range statements {
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Record appends ev to the journal.
func (j *EventJournal) Record(ctx context.Context, ev domain.AnticheatEvent) error {
	var details sql.NullString
	if len(ev.Details) > 0 {
		details = sql.NullString{String: string(ev.Details), Valid: true}
	}

	query := `INSERT INTO anticheat_events (candidate_id, event_type, details, occurred_at, received_at)
	          VALUES (?, ?, ?, ?, ?)`

	_, err := j.db.ExecContext(ctx, query,
		ev.CandidateID, ev.EventType, details, ev.OccurredAt.UTC(), ev.ReceivedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert anticheat event: %w", err)
	}

	return nil
}

// ListEvents returns the candidate's events in the order they were recorded.
// An empty candidateID lists events recorded without a candidate.
func (j *EventJournal) ListEvents(ctx context.Context, candidateID string, limit int) ([]domain.AnticheatEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT candidate_id, event_type, details, occurred_at, received_at
	          FROM anticheat_events WHERE candidate_id = ?
	          ORDER BY id ASC
	          LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, candidateID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query anticheat events: %w", err)
	}
	defer rows.Close()

	events := []domain.AnticheatEvent{}
	for rows.Next() {
		var (
			ev                     domain.AnticheatEvent
			details                sql.NullString
			occurredAt, receivedAt time.Time
		)
		if err := rows.Scan(&ev.CandidateID, &ev.EventType, &details, &occurredAt, &receivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan anticheat event: %w", err)
		}
		if details.Valid {
			ev.Details = []byte(details.String)
		}
		ev.OccurredAt = occurredAt
		ev.ReceivedAt = receivedAt
		events = append(events, ev)
	}

	return events, rows.Err()
}

// Close closes the database.
func (j *EventJournal) Close() error {
	return j.db.Close()
}
