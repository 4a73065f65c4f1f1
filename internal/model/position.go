package model

import "time"

// Position is the last known location of a subject within a tracking group
// (hot table). There is exactly one row per (subject, group) pair; every new
// fix overwrites the previous one. GroupID is the empty string for subjects
// not tracked inside a group.
type Position struct {
	SubjectID  string    `gorm:"primaryKey;size:64" json:"subject_id"`
	GroupID    string    `gorm:"primaryKey;size:64" json:"group_id"`
	Latitude   float64   `gorm:"not null" json:"latitude"`
	Longitude  float64   `gorm:"not null" json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	Speed      float64   `json:"speed"`
	Course     float64   `json:"course"`
	RecordedAt time.Time `gorm:"not null;index" json:"recorded_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProviderPosition mirrors a provider's latest location into a dedicated
// table consumed by the public provider map. Writes here are best-effort.
type ProviderPosition struct {
	SubjectID  string    `gorm:"primaryKey;size:64" json:"subject_id"`
	Latitude   float64   `gorm:"not null" json:"latitude"`
	Longitude  float64   `gorm:"not null" json:"longitude"`
	RecordedAt time.Time `gorm:"not null" json:"recorded_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
