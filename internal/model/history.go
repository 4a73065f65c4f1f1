package model

import "time"

// HistoryPoint is one point of the GPS-hardware trail (cold table). Unlike
// Position rows these are append-only and immutable once written, keyed by
// tracker and timestamp.
type HistoryPoint struct {
	TrackerID  string    `gorm:"primaryKey;size:64" json:"tracker_id"`
	RecordedAt time.Time `gorm:"primaryKey" json:"recorded_at"`
	Latitude   float64   `gorm:"not null" json:"latitude"`
	Longitude  float64   `gorm:"not null" json:"longitude"`
	Speed      float64   `json:"speed"`
	Course     float64   `json:"course"`
	CreatedAt  time.Time `json:"created_at"`
}
