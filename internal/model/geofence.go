package model

import "time"

// Geofence kinds.
const (
	GeofenceCircle  = "circle"
	GeofencePolygon = "polygon"
)

// Geofence is a circular or polygonal region owned by a tracking group.
// Circles use CenterLat/CenterLng/RadiusM; polygons store their ordered
// vertex list JSON-encoded in Vertices as [[lat,lng],...].
type Geofence struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	GroupID      string    `gorm:"index;size:64;not null" json:"group_id"`
	Name         string    `gorm:"size:128" json:"name"`
	Kind         string    `gorm:"size:16;not null" json:"kind"`
	CenterLat    float64   `json:"center_lat"`
	CenterLng    float64   `json:"center_lng"`
	RadiusM      float64   `json:"radius_m"`
	Vertices     string    `gorm:"type:text" json:"vertices,omitempty"`
	AlertOnEnter bool      `json:"alert_on_enter"`
	AlertOnExit  bool      `json:"alert_on_exit"`
	IsActive     bool      `gorm:"index" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GeofenceAssignment links a device/subject to a geofence. Many devices may
// be assigned to one fence and one device to many fences.
type GeofenceAssignment struct {
	GeofenceID string    `gorm:"primaryKey;size:36" json:"geofence_id"`
	SubjectID  string    `gorm:"primaryKey;size:64" json:"subject_id"`
	CreatedAt  time.Time `json:"created_at"`
}
