package repositories

import (
	"context"
	"time"

	"github.com/shashiranjanraj/orderdesk/app/models"
)

// MemoryOrderStore keeps orders in process memory. Contents are lost on
// restart.
type MemoryOrderStore struct {
	mu   chanMutex
	book *orderBook
	ids  *IDGenerator
	now  func() time.Time
}

// NewMemoryOrderStore creates an empty store.
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		mu:   newChanMutex(),
		book: newOrderBook(nil),
		ids:  NewIDGenerator(),
		now:  time.Now,
	}
}

func (s *MemoryOrderStore) Create(ctx context.Context, draft models.Order) (models.Order, error) {
	if err := s.mu.Lock(ctx); err != nil {
		return models.Order{}, err
	}
	defer s.mu.Unlock()

	o := stamp(draft, s.ids.Next(), s.now().UTC())
	s.book.add(o)
	return o.Clone(), nil
}

func (s *MemoryOrderStore) All(ctx context.Context) ([]models.Order, error) {
	if err := s.mu.Lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.book.snapshot(), nil
}

func (s *MemoryOrderStore) Find(ctx context.Context, id string) (models.Order, error) {
	if err := s.mu.Lock(ctx); err != nil {
		return models.Order{}, err
	}
	defer s.mu.Unlock()

	i, ok := s.book.find(id)
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return s.book.orders[i].Clone(), nil
}

func (s *MemoryOrderStore) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, guard StatusGuard) (models.Order, error) {
	if err := s.mu.Lock(ctx); err != nil {
		return models.Order{}, err
	}
	defer s.mu.Unlock()

	i, ok := s.book.find(id)
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	if err := checkGuard(guard, s.book.orders[i].Clone()); err != nil {
		return models.Order{}, err
	}

	s.book.orders[i].Status = status
	s.book.orders[i].UpdatedAt = s.now().UTC()
	return s.book.orders[i].Clone(), nil
}

// chanMutex is a mutex whose Lock gives up when ctx is done, so a caller
// stuck behind a slow disk write can still honour its deadline.
type chanMutex chan struct{}

func newChanMutex() chanMutex { return make(chanMutex, 1) }

func (m chanMutex) Lock(ctx context.Context) error {
	select {
	case m <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m chanMutex) Unlock() { <-m }
