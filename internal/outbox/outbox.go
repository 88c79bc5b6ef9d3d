package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Execer is satisfied by *sql.Tx and *sql.DB. Enqueue is meant to run on the
// same transaction as the state change it describes.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type NewEvent struct {
	Aggregate   string
	AggregateID string
	EventType   string
	RequestID   string
	Payload     any
}

// Enqueue stores e as a pending outbox row and returns its event id.
func Enqueue(ctx context.Context, tx Execer, e NewEvent) (string, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", e.EventType, err)
	}

	eventID := uuid.NewString()

	const q = `
INSERT INTO outbox (event_id, aggregate, aggregate_id, event_type, payload, request_id)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''));
`
	if _, err := tx.ExecContext(ctx, q, eventID, e.Aggregate, e.AggregateID, e.EventType, payload, e.RequestID); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", e.EventType, err)
	}
	return eventID, nil
}
