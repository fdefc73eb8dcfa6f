// Package repositories persists orders, push subscriptions and staff
// accounts. Every store comes in several backends selected by config.
package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shashiranjanraj/orderdesk/app/models"
)

// ErrOrderNotFound is returned when no order has the requested id.
var ErrOrderNotFound = errors.New("order not found")

// StatusGuard inspects the current order inside the store's critical section
// and vetoes a status change by returning an error.
type StatusGuard func(current models.Order) error

// OrderStore is the order persistence contract. Mutations are serialised:
// Create and UpdateStatus never interleave for the same store.
type OrderStore interface {
	// Create assigns ID, CreatedAt and UpdatedAt and persists the order.
	Create(ctx context.Context, draft models.Order) (models.Order, error)
	// All returns every order in insertion order.
	All(ctx context.Context) ([]models.Order, error)
	// Find returns the order or ErrOrderNotFound.
	Find(ctx context.Context, id string) (models.Order, error)
	// UpdateStatus sets status and UpdatedAt after guard (if any) approves.
	UpdateStatus(ctx context.Context, id string, status models.OrderStatus, guard StatusGuard) (models.Order, error)
}

// IDGenerator issues ORD-<unix millis> ids that strictly increase within a
// process, even when several orders land in the same millisecond.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

const idPrefix = "ORD-"

// NewIDGenerator returns a generator driven by the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns the next id.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return idPrefix + strconv.FormatInt(ms, 10)
}

// Observe bumps the generator past an existing id, so ids stay unique after
// a restart that reloads persisted orders.
func (g *IDGenerator) Observe(id string) {
	n, err := strconv.ParseInt(strings.TrimPrefix(id, idPrefix), 10, 64)
	if err != nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if n > g.last {
		g.last = n
	}
}

// orderBook is the in-memory collection shared by the memory and file
// stores. Callers hold the store mutex.
type orderBook struct {
	orders []models.Order
	index  map[string]int
}

func newOrderBook(orders []models.Order) *orderBook {
	b := &orderBook{orders: orders, index: make(map[string]int, len(orders))}
	for i, o := range orders {
		b.index[o.ID] = i
	}
	return b
}

func (b *orderBook) add(o models.Order) {
	b.index[o.ID] = len(b.orders)
	b.orders = append(b.orders, o)
}

// removeLast undoes the most recent add.
func (b *orderBook) removeLast() {
	last := b.orders[len(b.orders)-1]
	delete(b.index, last.ID)
	b.orders = b.orders[:len(b.orders)-1]
}

func (b *orderBook) find(id string) (int, bool) {
	i, ok := b.index[id]
	return i, ok
}

func (b *orderBook) snapshot() []models.Order {
	out := make([]models.Order, len(b.orders))
	for i, o := range b.orders {
		out[i] = o.Clone()
	}
	return out
}

func stamp(draft models.Order, id string, now time.Time) models.Order {
	o := draft.Clone()
	o.ID = id
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Items {
		o.Items[i].OrderID = id
		o.Items[i].Position = i
	}
	return o
}

func checkGuard(guard StatusGuard, current models.Order) error {
	if guard == nil {
		return nil
	}
	return guard(current)
}

func wrapStoreErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrOrderNotFound) {
		return err
	}
	return fmt.Errorf("repositories: %s: %w", op, err)
}
