package ticket_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/k1networth/servicedesk-lite/internal/shared/db"
	"github.com/k1networth/servicedesk-lite/internal/shared/requestid"
	"github.com/k1networth/servicedesk-lite/internal/ticket"
)

// openTestDB connects to TEST_DATABASE_URL or skips the test.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	conn, err := db.OpenPostgres(t.Context(), db.PostgresConfig{DatabaseURL: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.EnsureSchema(t.Context(), conn))
	return conn
}

func insertUser(t *testing.T, conn *sql.DB) string {
	t.Helper()
	id := uuid.NewString()
	_, err := conn.ExecContext(t.Context(),
		`INSERT INTO users (id, name, email, password_hash) VALUES ($1, $2, $3, $4)`,
		id, "pg", id+"@example.com", "x")
	require.NoError(t, err)
	return id
}

func outboxTypes(t *testing.T, conn *sql.DB, ticketID string) []string {
	t.Helper()
	rows, err := conn.QueryContext(t.Context(),
		`SELECT event_type FROM outbox WHERE aggregate_id = $1 ORDER BY created_at, id`, ticketID)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var et string
		require.NoError(t, rows.Scan(&et))
		out = append(out, et)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestPostgresStore(t *testing.T) {
	conn := openTestDB(t)
	req := require.New(t)
	ctx := requestid.With(context.Background(), "rid-pg")

	s := ticket.NewPostgresStore(conn)
	owner := insertUser(t, conn)

	created, err := s.Create(ctx, ticket.Ticket{Owner: owner, Product: "iPhone", Description: "screen", Status: ticket.StatusNew})
	req.NoError(err)
	req.Equal(owner, created.Owner)
	req.Equal(ticket.StatusNew, created.Status)

	list, err := s.ListByOwner(ctx, owner)
	req.NoError(err)
	req.Len(list, 1)

	desc := "replaced"
	updated, err := s.Update(ctx, created.ID, ticket.Patch{Description: &desc})
	req.NoError(err)
	req.Equal("iPhone", updated.Product)
	req.Equal("replaced", updated.Description)

	req.NoError(s.Delete(ctx, created.ID))
	req.ErrorIs(s.Delete(ctx, created.ID), ticket.ErrNotFound)

	_, err = s.Get(ctx, created.ID)
	req.ErrorIs(err, ticket.ErrNotFound)
	_, err = s.Get(ctx, "not-a-uuid")
	req.ErrorIs(err, ticket.ErrNotFound)

	req.Equal([]string{"ticket.created", "ticket.updated", "ticket.deleted"}, outboxTypes(t, conn, created.ID))
}
