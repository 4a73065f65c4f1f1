package store

import (
	"context"
	"time"
)

// Snapshot is one row of the fused live view: the latest position joined
// with the subject's presence state and profile. Offline subjects never
// appear in a snapshot; the filter lives in the query, not the consumers.
type Snapshot struct {
	SubjectID   string    `json:"subject_id"`
	GroupID     string    `json:"group_id"`
	DisplayName string    `json:"display_name"`
	State       string    `json:"state"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Speed       float64   `json:"speed"`
	Course      float64   `json:"course"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// ActiveSnapshots returns the live view for one scope. An empty groupID
// means "all active providers"; otherwise only members of that group are
// returned. Subjects whose presence is offline are excluded in either case;
// a subject with no presence row yet counts as available, the state it is
// born with.
func (s *gormStore) ActiveSnapshots(ctx context.Context, groupID string) ([]Snapshot, error) {
	q := s.db.WithContext(ctx).
		Table("positions").
		Select("positions.subject_id, positions.group_id, positions.latitude, positions.longitude, "+
			"positions.speed, positions.course, positions.recorded_at, "+
			"COALESCE(presence_records.state, ?) AS state, providers.display_name", "available").
		Joins("LEFT JOIN presence_records ON presence_records.subject_id = positions.subject_id").
		Joins("LEFT JOIN providers ON providers.subject_id = positions.subject_id").
		Where("presence_records.state IS NULL OR presence_records.state <> ?", "offline")

	if groupID == "" {
		q = q.Where("providers.role = ?", "provider")
	} else {
		q = q.Where("positions.group_id = ?", groupID)
	}

	var snaps []Snapshot
	if err := q.Order("positions.subject_id").Scan(&snaps).Error; err != nil {
		return nil, err
	}
	return snaps, nil
}
