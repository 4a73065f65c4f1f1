package model

import "time"

// Subject roles.
const (
	RoleProvider = "provider"
	RoleClient   = "client"
)

// Provider holds the profile metadata joined into location snapshots.
type Provider struct {
	SubjectID   string    `gorm:"primaryKey;size:64" json:"subject_id"`
	DisplayName string    `gorm:"size:128;not null" json:"display_name"`
	Role        string    `gorm:"size:16;not null;index" json:"role"`
	GroupID     string    `gorm:"index;size:64" json:"group_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TrackingGroup is a multi-member tracking context (a fleet, a family, a
// dispatch pool). Geofences belong to a group; only the owner mutates them.
type TrackingGroup struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	OwnerID   string    `gorm:"size:64;not null;index" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
