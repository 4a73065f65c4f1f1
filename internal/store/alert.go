package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aydetodd/todocerca-tracking/internal/model"
)

// CreateAlert appends one alert to the audit trail.
func (s *gormStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create alert for subject %s: %w", a.SubjectID, err)
	}
	return nil
}

func (s *gormStore) AlertsByGroup(ctx context.Context, groupID string, unresolvedOnly bool) ([]model.Alert, error) {
	q := s.db.WithContext(ctx).Where("group_id = ?", groupID)
	if unresolvedOnly {
		q = q.Where("is_resolved = ?", false)
	}
	var alerts []model.Alert
	err := q.Order("created_at DESC").Find(&alerts).Error
	return alerts, err
}

func (s *gormStore) MarkAlertRead(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).
		Model(&model.Alert{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}

// ResolveAlert flags an alert resolved. Alerts are never deleted.
func (s *gormStore) ResolveAlert(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&model.Alert{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_resolved": true, "resolved_at": &now}).Error
}
