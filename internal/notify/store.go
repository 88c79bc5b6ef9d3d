package notify

import (
	"context"
	"database/sql"
	"encoding/json"
)

const (
	statusProcessing = "processing"
	statusDone       = "done"
)

// ProcessedEvent is one row of the processed_events dedup table.
type ProcessedEvent struct {
	EventID     string
	EventType   string
	Aggregate   string
	AggregateID string
	Payload     json.RawMessage
}

// Store records which events the notification service has already handled.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// StartProcessing upserts the event row and bumps its attempts.
// It reports false when the event is already done.
func (s *Store) StartProcessing(ctx context.Context, e ProcessedEvent) (bool, error) {
	const q = `
INSERT INTO processed_events (event_id, event_type, aggregate, aggregate_id, payload, status, attempts, updated_at)
VALUES ($1, $2, $3, $4, $5, 'processing', 1, now())
ON CONFLICT (event_id) DO UPDATE
SET attempts = processed_events.attempts + 1,
    updated_at = now()
RETURNING status;
`
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	var status string
	err := s.db.QueryRowContext(ctx, q, e.EventID, e.EventType, e.Aggregate, e.AggregateID, []byte(payload)).Scan(&status)
	if err != nil {
		return false, err
	}
	return status != statusDone, nil
}

func (s *Store) MarkDone(ctx context.Context, eventID string) error {
	const q = `
UPDATE processed_events
SET status = 'done', processed_at = now(), last_error = NULL, updated_at = now()
WHERE event_id = $1;
`
	_, err := s.db.ExecContext(ctx, q, eventID)
	return err
}

// MarkFailed keeps the row in processing so a redelivery retries it.
func (s *Store) MarkFailed(ctx context.Context, eventID string, errMsg string) error {
	const q = `
UPDATE processed_events
SET status = $2, last_error = $3, updated_at = now()
WHERE event_id = $1;
`
	_, err := s.db.ExecContext(ctx, q, eventID, statusProcessing, errMsg)
	return err
}
