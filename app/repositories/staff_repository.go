package repositories

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/orderdesk/app/models"
)

// ErrStaffNotFound is returned when no staff account has the requested id.
var ErrStaffNotFound = errors.New("staff not found")

// StaffRepository looks up staff accounts for login.
type StaffRepository interface {
	FindByID(ctx context.Context, id string) (models.Staff, error)
	Upsert(ctx context.Context, staff models.Staff) error
}

// MemoryStaffRepository holds accounts seeded at boot.
type MemoryStaffRepository struct {
	mu    sync.RWMutex
	staff map[string]models.Staff
}

func NewMemoryStaffRepository(members ...models.Staff) *MemoryStaffRepository {
	r := &MemoryStaffRepository{staff: map[string]models.Staff{}}
	for _, m := range members {
		r.staff[m.ID] = m
	}
	return r
}

func (r *MemoryStaffRepository) FindByID(_ context.Context, id string) (models.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.staff[id]
	if !ok {
		return models.Staff{}, ErrStaffNotFound
	}
	return s, nil
}

func (r *MemoryStaffRepository) Upsert(_ context.Context, staff models.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staff[staff.ID] = staff
	return nil
}

// GormStaffRepository reads the staff table.
type GormStaffRepository struct {
	db *gorm.DB
}

func NewGormStaffRepository(db *gorm.DB) *GormStaffRepository {
	return &GormStaffRepository{db: db}
}

func (r *GormStaffRepository) FindByID(ctx context.Context, id string) (models.Staff, error) {
	var s models.Staff
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Staff{}, ErrStaffNotFound
	}
	if err != nil {
		return models.Staff{}, wrapStoreErr("find staff", err)
	}
	return s, nil
}

// Upsert inserts staff or refreshes name, role and password hash.
func (r *GormStaffRepository) Upsert(ctx context.Context, staff models.Staff) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "name", "role", "updated_at"}),
	}).Create(&staff).Error
	return wrapStoreErr("upsert staff", err)
}
