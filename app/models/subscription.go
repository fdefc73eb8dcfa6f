package models

import "time"

// SubscriptionKeys are the browser-provided encryption keys of a push
// subscription.
type SubscriptionKeys struct {
	P256dh string `gorm:"size:255;not null" json:"p256dh"`
	Auth   string `gorm:"size:255;not null" json:"auth"`
}

// Subscription is a staff browser's Web Push subscription. Endpoint is the
// identity.
type Subscription struct {
	ID        uint             `gorm:"primaryKey;autoIncrement"     json:"-"`
	Endpoint  string           `gorm:"size:700;not null;uniqueIndex" json:"endpoint"`
	Keys      SubscriptionKeys `gorm:"embedded;embeddedPrefix:key_" json:"keys"`
	CreatedAt time.Time        `json:"createdAt"`
}
