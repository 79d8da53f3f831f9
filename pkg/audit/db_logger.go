package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DBLogger writes audit events to the audit_events table
type DBLogger struct {
	db *sql.DB
}

// NewDBLogger creates a new database-based audit logger. The table is created
// by the rbac migrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// Log inserts an audit event and sets its ID
func (l *DBLogger) Log(ctx context.Context, event *AuditEvent) error {
	var changesJSON []byte
	if event.Changes != nil {
		var err error
		changesJSON, err = json.Marshal(event.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
	}

	query := `
		INSERT INTO audit_events (
			timestamp, event_type, status,
			actor_id, request_id,
			resource_type, resource_id, resource_name,
			message, changes
		) VALUES (
			$1, $2, $3,
			$4, $5,
			$6, $7, $8,
			$9, $10
		) RETURNING id
	`

	err := l.db.QueryRowContext(ctx, query,
		event.Timestamp, string(event.EventType), string(event.Status),
		event.ActorID, event.RequestID,
		string(event.ResourceType), event.ResourceID, event.ResourceName,
		event.Message, nullableJSON(changesJSON),
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	return nil
}

// ListForResource returns the events recorded against one resource, newest first
func (l *DBLogger) ListForResource(ctx context.Context, resourceType ResourceType, resourceID string, limit int) ([]*AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, timestamp, event_type, status, actor_id, request_id,
			resource_type, resource_id, resource_name, message, changes
		FROM audit_events
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY timestamp DESC, id DESC
		LIMIT $3
	`

	rows, err := l.db.QueryContext(ctx, query, string(resourceType), resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		var (
			e       AuditEvent
			changes sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.Status, &e.ActorID, &e.RequestID,
			&e.ResourceType, &e.ResourceID, &e.ResourceName, &e.Message, &changes); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if changes.Valid && changes.String != "" {
			e.Changes = &ChangeDetails{}
			if err := json.Unmarshal([]byte(changes.String), e.Changes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	return events, nil
}

// Cleanup deletes events older than before and returns how many were removed
func (l *DBLogger) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_events WHERE timestamp < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit events: %w", err)
	}
	return n, nil
}

// Close is a no-op; the database handle is owned by the caller
func (l *DBLogger) Close() error {
	return nil
}

func nullableJSON(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
