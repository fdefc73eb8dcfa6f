package repositories

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/orderdesk/app/models"
)

// SubscriptionRegistry stores Web Push subscriptions, unique by endpoint.
type SubscriptionRegistry interface {
	// Add stores sub unless its endpoint is already known; added reports
	// whether anything changed.
	Add(ctx context.Context, sub models.Subscription) (added bool, err error)
	// All returns every subscription in the order it was added.
	All(ctx context.Context) ([]models.Subscription, error)
	// Remove deletes the subscription for endpoint; removed reports whether
	// it existed.
	Remove(ctx context.Context, endpoint string) (removed bool, err error)
}

// ─── memory ───────────────────────────────────────────────────────────────────

// MemorySubscriptionRegistry keeps subscriptions in process memory.
type MemorySubscriptionRegistry struct {
	mu   sync.RWMutex
	subs []models.Subscription
	now  func() time.Time
}

func NewMemorySubscriptionRegistry() *MemorySubscriptionRegistry {
	return &MemorySubscriptionRegistry{now: time.Now}
}

func (r *MemorySubscriptionRegistry) Add(_ context.Context, sub models.Subscription) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.subs {
		if existing.Endpoint == sub.Endpoint {
			return false, nil
		}
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = r.now().UTC()
	}
	r.subs = append(r.subs, sub)
	return true, nil
}

func (r *MemorySubscriptionRegistry) All(context.Context) ([]models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Subscription, len(r.subs))
	copy(out, r.subs)
	return out, nil
}

func (r *MemorySubscriptionRegistry) Remove(_ context.Context, endpoint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.subs {
		if existing.Endpoint == endpoint {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// ─── gorm ─────────────────────────────────────────────────────────────────────

// GormSubscriptionRegistry stores subscriptions in the subscriptions table.
// The unique index on endpoint enforces dedup across concurrent Adds.
type GormSubscriptionRegistry struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormSubscriptionRegistry(db *gorm.DB) *GormSubscriptionRegistry {
	return &GormSubscriptionRegistry{db: db, now: time.Now}
}

func (r *GormSubscriptionRegistry) Add(ctx context.Context, sub models.Subscription) (bool, error) {
	sub.ID = 0
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = r.now().UTC()
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "endpoint"}}, DoNothing: true}).
		Create(&sub)
	if res.Error != nil {
		return false, wrapStoreErr("add subscription", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *GormSubscriptionRegistry) All(ctx context.Context) ([]models.Subscription, error) {
	subs := []models.Subscription{}
	if err := r.db.WithContext(ctx).Order("id asc").Find(&subs).Error; err != nil {
		return nil, wrapStoreErr("list subscriptions", err)
	}
	return subs, nil
}

func (r *GormSubscriptionRegistry) Remove(ctx context.Context, endpoint string) (bool, error) {
	res := r.db.WithContext(ctx).Where("endpoint = ?", endpoint).Delete(&models.Subscription{})
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, wrapStoreErr("remove subscription", res.Error)
	}
	return res.RowsAffected > 0, nil
}
