package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"courtside/internal/securityaudit"
)

const schema = `
CREATE TABLE IF NOT EXISTS security_events (
	id          TEXT PRIMARY KEY,
	timestamp   TIMESTAMPTZ NOT NULL,
	type        TEXT NOT NULL,
	actor_id    TEXT NOT NULL,
	actor_role  TEXT NOT NULL,
	action      TEXT NOT NULL,
	resource    TEXT NOT NULL,
	result      TEXT NOT NULL,
	risk_level  TEXT NOT NULL,
	details     JSONB NOT NULL,
	prev_hash   TEXT NOT NULL,
	hash        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS security_events_actor_ts ON security_events (actor_id, timestamp DESC);
`

// Store persists security events to the security_events table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL security event store.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	return &Store{db: db}, nil
}

// EnsureSchema creates the table and index if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create security_events schema: %w", err)
	}
	return nil
}

// AppendBatch inserts events in one transaction.
// Idempotent via ON CONFLICT DO NOTHING.
func (s *Store) AppendBatch(ctx context.Context, events []securityaudit.SecurityEvent) (err error) {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin security event batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO security_events (
			id, timestamp, type, actor_id, actor_role, action,
			resource, result, risk_level, details, prev_hash, hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare security event insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal details of %s: %w", e.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			e.ID,
			e.Timestamp,
			string(e.Type),
			e.ActorID,
			e.ActorRole,
			e.Action,
			e.Resource,
			string(e.Result),
			string(e.RiskLevel),
			details,
			e.PrevHash,
			e.Hash,
		)
		if err != nil {
			return fmt.Errorf("insert security event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit security event batch: %w", err)
	}
	return nil
}

// ListByActor returns the actor's most recent events, newest first.
func (s *Store) ListByActor(ctx context.Context, actorID string, limit int) ([]securityaudit.SecurityEvent, error) {
	query := `
		SELECT id, timestamp, type, actor_id, actor_role, action,
			   resource, result, risk_level, details, prev_hash, hash
		FROM security_events
		WHERE actor_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	var events []securityaudit.SecurityEvent
	for rows.Next() {
		var (
			e       securityaudit.SecurityEvent
			details []byte
		)
		err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&e.Type,
			&e.ActorID,
			&e.ActorRole,
			&e.Action,
			&e.Resource,
			&e.Result,
			&e.RiskLevel,
			&details,
			&e.PrevHash,
			&e.Hash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode details of %s: %w", e.ID, err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security events: %w", err)
	}
	return events, nil
}
