package ticket

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("ticket not found")

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -source=store.go -destination=mocks/store_mock.go -package=mocks

type Store interface {
	ListByOwner(ctx context.Context, owner string) ([]Ticket, error)
	Create(ctx context.Context, t Ticket) (Ticket, error)
	Get(ctx context.Context, id string) (Ticket, error)
	Update(ctx context.Context, id string, p Patch) (Ticket, error)
	Delete(ctx context.Context, id string) error
}

// InMemoryStore keeps tickets in insertion order.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]Ticket
	order []string
	now   func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID: make(map[string]Ticket),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner string) ([]Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Ticket, 0)
	for _, id := range s.order {
		if t := s.byID[id]; t.Owner == owner {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Create(_ context.Context, t Ticket) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := s.now()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.byID[t.ID] = t
	s.order = append(s.order, t.ID)
	return t, nil
}

func (s *InMemoryStore) Get(_ context.Context, id string) (Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return t, nil
}

func (s *InMemoryStore) Update(_ context.Context, id string, p Patch) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	t = p.Apply(t)
	t.UpdatedAt = s.now()
	s.byID[id] = t
	return t, nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}
