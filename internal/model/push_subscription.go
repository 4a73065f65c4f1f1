package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Subscriptions follow tracking groups: a subscriber receives every alert
// raised inside the groups it is mapped to.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Groups []*TrackingGroup `gorm:"many2many:subscription_group_mapping;"`
}
