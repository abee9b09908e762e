package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openlearnhq/lms-api/internal/models"
)

// OutboxRepository manages pending integration events.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Append stores an event for later dispatch. The payload is marshaled to
// JSON here so callers pass plain structs or maps.
func (r *OutboxRepository) Append(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	event := models.OutboxEvent{
		ID:        uuid.NewString(),
		Topic:     topic,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	const query = `INSERT INTO outbox_events (id, topic, payload, created_at)
        VALUES (:id, :topic, :payload, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

// FetchPending returns up to limit undispatched events, oldest first.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, topic, payload, created_at, dispatched_at
        FROM outbox_events WHERE dispatched_at IS NULL ORDER BY created_at ASC LIMIT $1`
	var events []models.OutboxEvent
	if err := r.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("fetch pending events: %w", err)
	}
	return events, nil
}

// MarkDispatched stamps an event as delivered.
func (r *OutboxRepository) MarkDispatched(ctx context.Context, id string) error {
	const query = `UPDATE outbox_events SET dispatched_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark dispatched: %w", err)
	}
	return nil
}

// PurgeDispatched deletes delivered events older than the retention window.
func (r *OutboxRepository) PurgeDispatched(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE dispatched_at IS NOT NULL AND dispatched_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return affected, nil
}
