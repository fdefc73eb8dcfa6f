package migrations

import (
	"gorm.io/gorm"

	"github.com/shashiranjanraj/orderdesk/app/models"
	"github.com/shashiranjanraj/orderdesk/pkg/migration"
	"github.com/shashiranjanraj/orderdesk/pkg/queue"
)

func init() {
	migration.Register("20260301000000_create_orders_table", &CreateOrdersTable{})
	migration.Register("20260301000001_create_subscriptions_table", &CreateSubscriptionsTable{})
	migration.Register("20260301000002_create_staff_table", &CreateStaffTable{})
	migration.Register("20260301000003_create_failed_jobs_table", &CreateFailedJobsTable{})
}

// -------- 0000: orders + order_items --------

type CreateOrdersTable struct{}

func (m *CreateOrdersTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Order{}, &models.OrderItem{})
}

func (m *CreateOrdersTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.OrderItem{}, &models.Order{})
}

// -------- 0001: subscriptions --------

type CreateSubscriptionsTable struct{}

func (m *CreateSubscriptionsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Subscription{})
}

func (m *CreateSubscriptionsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.Subscription{})
}

// -------- 0002: staff --------

type CreateStaffTable struct{}

func (m *CreateStaffTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Staff{})
}

func (m *CreateStaffTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.Staff{})
}

// -------- 0003: failed jobs --------

type CreateFailedJobsTable struct{}

func (m *CreateFailedJobsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&queue.FailedJobRecord{})
}

func (m *CreateFailedJobsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&queue.FailedJobRecord{})
}
