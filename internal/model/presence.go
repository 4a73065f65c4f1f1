package model

import "time"

// PresenceRecord is the authoritative availability row for one subject.
// Exactly one row per subject; created on first provider activation and
// mutated only through the presence store.
type PresenceRecord struct {
	SubjectID string    `gorm:"primaryKey;size:64" json:"subject_id"`
	State     string    `gorm:"size:16;not null" json:"state"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
