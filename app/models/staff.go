package models

import "time"

// Staff is a restaurant staff account.
type Staff struct {
	ID           string    `gorm:"primaryKey;size:64"  json:"id"`
	PasswordHash string    `gorm:"size:255;not null"   json:"-"` // bcrypt, never serialised
	Name         string    `gorm:"size:255;not null"   json:"name"`
	Role         string    `gorm:"size:50;not null"    json:"role"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

func (Staff) TableName() string { return "staff" }
