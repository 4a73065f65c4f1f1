package model

import "time"

// Alert kinds emitted by the geofence detector. Threshold detectors (speed,
// battery) reuse the same record shape with their own kind strings.
const (
	AlertGeofenceEnter = "geofence_enter"
	AlertGeofenceExit  = "geofence_exit"
)

// Alert is one detector-emitted event for a tracked subject. Alerts form an
// append-only audit trail: they are never deleted, only flagged read and
// resolved.
type Alert struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	SubjectID  string     `gorm:"index;size:64;not null" json:"subject_id"`
	GroupID    string     `gorm:"index;size:64" json:"group_id"`
	Kind       string     `gorm:"size:32;not null" json:"kind"`
	Message    string     `gorm:"size:256;not null" json:"message"`
	Latitude   *float64   `json:"latitude,omitempty"`
	Longitude  *float64   `json:"longitude,omitempty"`
	GeofenceID string     `gorm:"index;size:36" json:"geofence_id,omitempty"`
	IsRead     bool       `json:"is_read"`
	IsResolved bool       `json:"is_resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null;index" json:"created_at"`
}
