// Package migration runs and tracks schema migrations.
//
// Migrations register themselves from init() in database/migrations:
//
//	func init() {
//	    migration.Register("20260301000000_create_orders_table", &CreateOrdersTable{})
//	}
//
// and are applied from the CLI:
//
//	orderdesk migrate
//	orderdesk migrate:rollback
//	orderdesk migrate:status
package migration

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/orderdesk/pkg/logger"
)

// Migration is one reversible schema change.
type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

type migrationRecord struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (migrationRecord) TableName() string { return "orderdesk_migrations" }

type registeredMigration struct {
	name string
	m    Migration
}

var (
	registryMu sync.Mutex
	registry   []registeredMigration
)

// Register adds a migration. Names are timestamp-prefixed and applied in
// lexical order.
func Register(name string, m Migration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, registeredMigration{name: name, m: m})
}

func registered() []registeredMigration {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]registeredMigration, len(registry))
	copy(out, registry)
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Status is one row of `migrate:status`.
type Status struct {
	Name  string
	Ran   bool
	Batch int
}

// Runner executes and tracks migrations. Progress lines go to Out.
type Runner struct {
	db  *gorm.DB
	Out io.Writer
}

// New creates a Runner that writes progress to out (io.Discard if nil).
func New(db *gorm.DB, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{db: db, Out: out}
}

func (r *Runner) ensureTable(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&migrationRecord{}); err != nil {
		return fmt.Errorf("migration: ensure table: %w", err)
	}
	return nil
}

func (r *Runner) ran(ctx context.Context) (map[string]migrationRecord, error) {
	var rows []migrationRecord
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("migration: read history: %w", err)
	}
	out := make(map[string]migrationRecord, len(rows))
	for _, row := range rows {
		out[row.Name] = row
	}
	return out, nil
}

// Run applies every pending migration as one batch and returns how many ran.
func (r *Runner) Run(ctx context.Context) (int, error) {
	if err := r.ensureTable(ctx); err != nil {
		return 0, err
	}
	ran, err := r.ran(ctx)
	if err != nil {
		return 0, err
	}

	var pending []registeredMigration
	for _, reg := range registered() {
		if _, ok := ran[reg.name]; !ok {
			pending = append(pending, reg)
		}
	}
	if len(pending) == 0 {
		fmt.Fprintln(r.Out, "Nothing to migrate.")
		return 0, nil
	}

	batch, err := r.lastBatch(ctx)
	if err != nil {
		return 0, err
	}
	batch++

	db := r.db.WithContext(ctx)
	for _, reg := range pending {
		fmt.Fprintf(r.Out, "  ▶ Migrating: %s\n", reg.name)

		if err := reg.m.Up(db); err != nil {
			return 0, fmt.Errorf("migration: %s up: %w", reg.name, err)
		}
		if err := db.Create(&migrationRecord{Name: reg.name, Batch: batch}).Error; err != nil {
			return 0, fmt.Errorf("migration: record %s: %w", reg.name, err)
		}

		fmt.Fprintf(r.Out, "  ✅ Migrated:  %s\n", reg.name)
	}

	logger.Info("migration: done", "ran", len(pending), "batch", batch)
	return len(pending), nil
}

// Rollback reverses the most recent batch and returns how many were undone.
func (r *Runner) Rollback(ctx context.Context) (int, error) {
	if err := r.ensureTable(ctx); err != nil {
		return 0, err
	}

	batch, err := r.lastBatch(ctx)
	if err != nil {
		return 0, err
	}
	if batch == 0 {
		fmt.Fprintln(r.Out, "Nothing to roll back.")
		return 0, nil
	}

	db := r.db.WithContext(ctx)

	var records []migrationRecord
	if err := db.Where("batch = ?", batch).Order("id desc").Find(&records).Error; err != nil {
		return 0, fmt.Errorf("migration: read batch %d: %w", batch, err)
	}

	byName := make(map[string]Migration)
	for _, reg := range registered() {
		byName[reg.name] = reg.m
	}

	for _, rec := range records {
		m, ok := byName[rec.Name]
		if !ok {
			return 0, fmt.Errorf("migration: cannot roll back %s: not registered", rec.Name)
		}

		fmt.Fprintf(r.Out, "  ◀ Rolling back: %s\n", rec.Name)
		if err := m.Down(db); err != nil {
			return 0, fmt.Errorf("migration: %s down: %w", rec.Name, err)
		}
		if err := db.Delete(&rec).Error; err != nil {
			return 0, fmt.Errorf("migration: forget %s: %w", rec.Name, err)
		}
		fmt.Fprintf(r.Out, "  ✅ Rolled back:  %s\n", rec.Name)
	}

	logger.Info("migration: rolled back", "count", len(records), "batch", batch)
	return len(records), nil
}

// Status lists every registered migration and whether it has run.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	ran, err := r.ran(ctx)
	if err != nil {
		return nil, err
	}

	var out []Status
	for _, reg := range registered() {
		rec, ok := ran[reg.name]
		out = append(out, Status{Name: reg.name, Ran: ok, Batch: rec.Batch})
	}
	return out, nil
}

func (r *Runner) lastBatch(ctx context.Context) (int, error) {
	var max struct{ Max int }
	err := r.db.WithContext(ctx).Model(&migrationRecord{}).
		Select("COALESCE(MAX(batch), 0) as max").Scan(&max).Error
	if err != nil {
		return 0, fmt.Errorf("migration: last batch: %w", err)
	}
	return max.Max, nil
}
