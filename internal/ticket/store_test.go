package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	s := NewInMemoryStore()
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	a, err := s.Create(ctx, Ticket{Owner: "u1", Product: "iPhone", Description: "screen", Status: StatusNew})
	req.NoError(err)
	req.NotEmpty(a.ID)
	req.Equal(clock, a.CreatedAt)
	req.Equal(clock, a.UpdatedAt)

	b, err := s.Create(ctx, Ticket{Owner: "u2", Product: "Mac", Description: "fan", Status: StatusNew})
	req.NoError(err)
	c, err := s.Create(ctx, Ticket{Owner: "u1", Product: "iPad", Description: "battery", Status: StatusNew})
	req.NoError(err)

	list, err := s.ListByOwner(ctx, "u1")
	req.NoError(err)
	req.Equal([]string{a.ID, c.ID}, ids(list))

	list, err = s.ListByOwner(ctx, "nobody")
	req.NoError(err)
	req.NotNil(list)
	req.Empty(list)

	clock = clock.Add(time.Minute)
	desc := "replaced"
	updated, err := s.Update(ctx, a.ID, Patch{Description: &desc})
	req.NoError(err)
	req.Equal("iPhone", updated.Product)
	req.Equal("replaced", updated.Description)
	req.Equal(a.CreatedAt, updated.CreatedAt)
	req.Equal(clock, updated.UpdatedAt)

	req.NoError(s.Delete(ctx, a.ID))
	req.ErrorIs(s.Delete(ctx, a.ID), ErrNotFound)

	_, err = s.Get(ctx, a.ID)
	req.ErrorIs(err, ErrNotFound)
	_, err = s.Update(ctx, a.ID, Patch{})
	req.ErrorIs(err, ErrNotFound)

	list, err = s.ListByOwner(ctx, "u1")
	req.NoError(err)
	req.Equal([]string{c.ID}, ids(list))

	got, err := s.Get(ctx, b.ID)
	req.NoError(err)
	req.Equal(b, got)
}

func TestPatchApply(t *testing.T) {
	req := require.New(t)
	base := Ticket{ID: "t1", Owner: "u1", Product: "p", Description: "d", Status: StatusNew}

	req.Equal(base, Patch{}.Apply(base))

	status := StatusClosed
	got := Patch{Status: &status}.Apply(base)
	req.Equal(StatusClosed, got.Status)
	req.Equal("p", got.Product)
	req.Equal("t1", got.ID)
	req.Equal("u1", got.Owner)
}

func TestCreateTicketRequestValidate(t *testing.T) {
	req := require.New(t)

	req.NoError(CreateTicketRequest{Product: "p", Description: "d"}.Validate())

	for _, r := range []CreateTicketRequest{
		{},
		{Product: "p"},
		{Description: "d"},
		{Product: " ", Description: "d"},
	} {
		err := r.Validate()
		req.Error(err)
		req.Equal("Please add a products and description", err.Error())
	}
}

func TestPatchValidateStatus(t *testing.T) {
	req := require.New(t)

	req.NoError(Patch{}.ValidateStatus())
	for _, s := range []Status{StatusNew, StatusOpen, StatusClosed} {
		req.NoError(Patch{Status: &s}.ValidateStatus())
	}

	bad := Status("pending")
	req.EqualError(Patch{Status: &bad}.ValidateStatus(), "Invalid ticket status")
}

func ids(ts []Ticket) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}
