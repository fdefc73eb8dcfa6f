package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/orderdesk/app/models"
)

// maxStatusRetries bounds the optimistic retry loop in UpdateStatus.
const maxStatusRetries = 3

// GormOrderStore keeps orders in a SQL database. Items live in their own
// table; every mutation runs in a transaction.
type GormOrderStore struct {
	db  *gorm.DB
	ids *IDGenerator
	now func() time.Time

	seeded chanMutex
	ready  bool
}

// NewGormOrderStore uses db; the tables come from the migrations.
func NewGormOrderStore(db *gorm.DB) *GormOrderStore {
	return &GormOrderStore{
		db:     db,
		ids:    NewIDGenerator(),
		now:    time.Now,
		seeded: newChanMutex(),
	}
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position asc")
	})
}

// seedIDs moves the generator past the newest stored id once per process.
func (s *GormOrderStore) seedIDs(ctx context.Context) error {
	if err := s.seeded.Lock(ctx); err != nil {
		return err
	}
	defer s.seeded.Unlock()
	if s.ready {
		return nil
	}

	var latest models.Order
	err := s.db.WithContext(ctx).Select("id").Order("id desc").Limit(1).Find(&latest).Error
	if err != nil {
		return wrapStoreErr("seed ids", err)
	}
	if latest.ID != "" {
		s.ids.Observe(latest.ID)
	}
	s.ready = true
	return nil
}

func (s *GormOrderStore) Create(ctx context.Context, draft models.Order) (models.Order, error) {
	if err := s.seedIDs(ctx); err != nil {
		return models.Order{}, err
	}

	o := stamp(draft, s.ids.Next(), s.now().UTC())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&o).Error
	})
	if err != nil {
		return models.Order{}, wrapStoreErr("create order", err)
	}
	return o.Clone(), nil
}

func (s *GormOrderStore) All(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	if err := withItems(s.db.WithContext(ctx)).Order("created_at asc, id asc").Find(&orders).Error; err != nil {
		return nil, wrapStoreErr("list orders", err)
	}
	for i := range orders {
		orders[i] = orders[i].Clone()
	}
	return orders, nil
}

func (s *GormOrderStore) Find(ctx context.Context, id string) (models.Order, error) {
	return s.find(s.db.WithContext(ctx), id)
}

func (s *GormOrderStore) find(db *gorm.DB, id string) (models.Order, error) {
	var o models.Order
	err := withItems(db).Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, wrapStoreErr("find order", err)
	}
	return o.Clone(), nil
}

// UpdateStatus is a compare-and-swap on the status column: the row is only
// written if nobody changed the status since it was read, otherwise the read,
// guard and write are retried.
func (s *GormOrderStore) UpdateStatus(ctx context.Context, id string, status models.OrderStatus, guard StatusGuard) (models.Order, error) {
	for attempt := 0; attempt < maxStatusRetries; attempt++ {
		var updated models.Order
		var guardErr error
		conflict := false

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.find(tx, id)
			if err != nil {
				return err
			}
			if guardErr = checkGuard(guard, current); guardErr != nil {
				return guardErr
			}

			now := s.now().UTC()
			res := tx.Model(&models.Order{}).
				Where("id = ? AND status = ?", id, current.Status).
				Updates(map[string]interface{}{"status": status, "updated_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				conflict = true
				return nil
			}

			current.Status = status
			current.UpdatedAt = now
			updated = current
			return nil
		})
		if guardErr != nil {
			return models.Order{}, guardErr
		}
		if err != nil {
			return models.Order{}, wrapStoreErr("update status", err)
		}
		if !conflict {
			return updated, nil
		}
	}
	return models.Order{}, fmt.Errorf("repositories: update status %s: too much contention", id)
}
