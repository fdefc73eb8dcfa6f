package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/orderdesk/app/models"
	"github.com/shashiranjanraj/orderdesk/pkg/storage"
)

// FileOrderStore keeps the whole order book as one JSON array on a storage
// disk (local directory or S3 bucket). The document is loaded on first use
// and rewritten after every mutation; a failed write rolls the change back.
type FileOrderStore struct {
	disk storage.Disk
	path string

	mu     chanMutex
	book   *orderBook
	loaded bool
	ids    *IDGenerator
	now    func() time.Time
}

// NewFileOrderStore stores orders at path on disk.
func NewFileOrderStore(disk storage.Disk, path string) *FileOrderStore {
	if path == "" {
		path = "orders.json"
	}
	return &FileOrderStore{
		disk: disk,
		path: path,
		mu:   newChanMutex(),
		ids:  NewIDGenerator(),
		now:  time.Now,
	}
}

// lock acquires the mutex and makes sure the document has been read.
func (s *FileOrderStore) lock(ctx context.Context) error {
	if err := s.mu.Lock(ctx); err != nil {
		return err
	}
	if s.loaded {
		return nil
	}
	if err := s.load(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *FileOrderStore) load(ctx context.Context) error {
	var orders []models.Order

	data, err := s.disk.Get(ctx, s.path)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("repositories: load %s: %w", s.path, err)
	default:
		if len(data) > 0 {
			if err := json.Unmarshal(data, &orders); err != nil {
				return fmt.Errorf("repositories: decode %s: %w", s.path, err)
			}
		}
	}

	for i := range orders {
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
		s.ids.Observe(orders[i].ID)
	}
	s.book = newOrderBook(orders)
	s.loaded = true
	return nil
}

func (s *FileOrderStore) flush(ctx context.Context) error {
	data, err := json.MarshalIndent(s.book.orders, "", "  ")
	if err != nil {
		return fmt.Errorf("repositories: encode orders: %w", err)
	}
	if err := s.disk.Put(ctx, s.path, data); err != nil {
		return fmt.Errorf("repositories: write %s: %w", s.path, err)
	}
	return nil
}

func (s *FileOrderStore) Create(ctx context.Context, draft models.Order) (models.Order, error) {
	if err := s.lock(ctx); err != nil {
		return models.Order{}, err
	}
	defer s.mu.Unlock()

	o := stamp(draft, s.ids.Next(), s.now().UTC())
	s.book.add(o)

	if err := s.flush(ctx); err != nil {
		s.book.removeLast()
		return models.Order{}, err
	}
	return o.Clone(), nil
}

func (s *FileOrderStore) All(ctx context.Context) ([]models.Order, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.book.snapshot(), nil
}

func (s *FileOrderStore) Find(ctx context.Context, id string) (models.Order, error) {
	if err := s.lock(ctx); err != nil {
		return models.Order{}, err
	}
	defer s.mu.Unlock()

	i, ok := s.book.find(id)
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return s.book.orders[i].Clone(), nil
}

func (s *FileOrderStore) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, guard StatusGuard) (models.Order, error) {
	if err := s.lock(ctx); err != nil {
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

	previous := s.book.orders[i]
	s.book.orders[i].Status = status
	s.book.orders[i].UpdatedAt = s.now().UTC()

	if err := s.flush(ctx); err != nil {
		s.book.orders[i] = previous
		return models.Order{}, err
	}
	return s.book.orders[i].Clone(), nil
}
