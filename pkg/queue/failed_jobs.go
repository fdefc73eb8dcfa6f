package queue

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/orderdesk/pkg/logger"
)

// FailedJobRecord is the persisted form of a FailedJob.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JobType  string    `gorm:"size:255;not null;index" json:"jobType"`
	Payload  string    `gorm:"type:text;not null" json:"payload"`
	Error    string    `gorm:"type:text" json:"error"`
	Attempts int       `gorm:"not null;default:0" json:"attempts"`
	FailedAt time.Time `gorm:"index" json:"failedAt"`
}

func (FailedJobRecord) TableName() string { return "orderdesk_failed_jobs" }

// UseDB makes the Manager persist failed jobs to db in addition to memory.
// The table is created by the migrations; UseDB only records the handle.
func (m *Manager) UseDB(db *gorm.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.db = db
}

// ListFailed returns the most recent persisted failed jobs, newest first.
func ListFailed(ctx context.Context, db *gorm.DB, limit int) ([]FailedJobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []FailedJobRecord
	if err := db.WithContext(ctx).Order("failed_at desc, id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("queue: list failed jobs: %w", err)
	}
	return rows, nil
}

func (m *Manager) recordFailed(env envelope, lastErr error, attempts int) {
	now := time.Now().UTC()

	m.mu.Lock()
	if n := len(m.failed); n >= m.opts.KeepFailed {
		drop := n - m.opts.KeepFailed + 1
		copy(m.failed, m.failed[drop:])
		m.failed = m.failed[:n-drop]
	}
	m.failed = append(m.failed, FailedJob{
		Type:     env.Type,
		Payload:  env.Payload,
		Err:      lastErr,
		Attempts: attempts,
		FailedAt: now,
	})
	db := m.db
	m.mu.Unlock()

	if db == nil {
		return
	}

	record := FailedJobRecord{
		JobType:  env.Type,
		Payload:  string(env.Payload),
		Error:    lastErr.Error(),
		Attempts: attempts,
		FailedAt: now,
	}
	if err := db.Create(&record).Error; err != nil {
		// The in-memory log still has it.
		logger.Error("queue: persist failed job", "type", env.Type, "error", err)
	}
}
