// Package audit persists security-relevant events to the audit_logs table and mirrors them to the log.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/invoice-admin/internal/core/events"
	"github.com/jmoiron/sqlx"
)

// Entry is one audit_logs row.
type Entry struct {
	ID         int64     `db:"id" json:"id"`
	EventID    string    `db:"event_id" json:"eventId"`
	ActorID    int64     `db:"actor_id" json:"actorId"`
	Action     string    `db:"action" json:"action"`
	Outcome    string    `db:"outcome" json:"outcome"`
	Target     string    `db:"target" json:"target"`
	Details    string    `db:"details" json:"details"`
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
}

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}
	return &Store{db: db}, nil
}

func (s *Store) Write(ctx context.Context, evt *events.AuditEvent) error {
	details, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := s.db.Rebind(`INSERT INTO audit_logs (event_id, actor_id, action, outcome, target, details, occurred_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		evt.ID, evt.ActorID, evt.Action, string(evt.Outcome), evt.Target, string(details), evt.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// Filter narrows Recent. Zero values match everything.
type Filter struct {
	ActorID int64
	Action  string
	Since   time.Time
	Limit   int
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}

	query := `SELECT id, event_id, actor_id, action, outcome, target, details, occurred_at FROM audit_logs WHERE 1=1`
	args := []interface{}{}
	if f.ActorID > 0 {
		query += ` AND actor_id = ?`
		args = append(args, f.ActorID)
	}
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, f.Action)
	}
	if !f.Since.IsZero() {
		query += ` AND occurred_at >= ?`
		args = append(args, f.Since)
	}
	query += ` ORDER BY occurred_at DESC, id DESC LIMIT ?`
	args = append(args, f.Limit)

	var entries []Entry
	if err := s.db.SelectContext(ctx, &entries, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	return entries, nil
}
