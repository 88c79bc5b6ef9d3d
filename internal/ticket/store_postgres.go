package ticket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/k1networth/servicedesk-lite/internal/outbox"
	"github.com/k1networth/servicedesk-lite/internal/shared/db"
	"github.com/k1networth/servicedesk-lite/internal/shared/events"
	"github.com/k1networth/servicedesk-lite/internal/shared/requestid"
)

// PostgresStore persists tickets and records a lifecycle event in the outbox
// within the same transaction as every mutation.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const ticketColumns = `id, owner_id, product, description, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (Ticket, error) {
	var out Ticket
	err := row.Scan(&out.ID, &out.Owner, &out.Product, &out.Description, &out.Status, &out.CreatedAt, &out.UpdatedAt)
	return out, err
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner string) ([]Ticket, error) {
	out := make([]Ticket, 0)
	if _, err := uuid.Parse(owner); err != nil {
		return out, nil
	}

	const q = `
SELECT ` + ticketColumns + `
FROM tickets
WHERE owner_id = $1
ORDER BY created_at, id;
`
	rows, err := s.db.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Create(ctx context.Context, t Ticket) (Ticket, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	const q = `
INSERT INTO tickets (id, owner_id, product, description, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, now(), now())
RETURNING ` + ticketColumns + `;
`
	var out Ticket
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		out, err = scanTicket(tx.QueryRowContext(ctx, q, t.ID, t.Owner, t.Product, t.Description, t.Status))
		if err != nil {
			return err
		}
		return enqueue(ctx, tx, events.TicketCreated, out.ID, out)
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("create ticket: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Ticket{}, ErrNotFound
	}

	const q = `
SELECT ` + ticketColumns + `
FROM tickets
WHERE id = $1;
`
	out, err := scanTicket(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, ErrNotFound
		}
		return Ticket{}, err
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, p Patch) (Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Ticket{}, ErrNotFound
	}

	const q = `
UPDATE tickets
SET product = COALESCE($2, product),
    description = COALESCE($3, description),
    status = COALESCE($4, status),
    updated_at = now()
WHERE id = $1
RETURNING ` + ticketColumns + `;
`
	var status sql.NullString
	if p.Status != nil {
		status = sql.NullString{String: string(*p.Status), Valid: true}
	}

	var out Ticket
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		out, err = scanTicket(tx.QueryRowContext(ctx, q, id, nullable(p.Product), nullable(p.Description), status))
		if err != nil {
			return err
		}
		return enqueue(ctx, tx, events.TicketUpdated, out.ID, out)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Ticket{}, ErrNotFound
		}
		return Ticket{}, fmt.Errorf("update ticket: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	const q = `
DELETE FROM tickets
WHERE id = $1
RETURNING ` + ticketColumns + `;
`
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		deleted, err := scanTicket(tx.QueryRowContext(ctx, q, id))
		if err != nil {
			return err
		}
		return enqueue(ctx, tx, events.TicketDeleted, deleted.ID, deleted)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}

func enqueue(ctx context.Context, tx *sql.Tx, eventType, ticketID string, t Ticket) error {
	_, err := outbox.Enqueue(ctx, tx, outbox.NewEvent{
		Aggregate:   events.AggregateTicket,
		AggregateID: ticketID,
		EventType:   eventType,
		RequestID:   requestid.Get(ctx),
		Payload:     t,
	})
	return err
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
