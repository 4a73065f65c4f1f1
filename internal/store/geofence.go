package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aydetodd/todocerca-tracking/internal/model"
)

// SaveGeofence creates or replaces a geofence definition.
func (s *gormStore) SaveGeofence(ctx context.Context, g model.Geofence) error {
	g.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "kind", "center_lat", "center_lng", "radius_m", "vertices",
			"alert_on_enter", "alert_on_exit", "is_active", "updated_at",
		}),
	}).Create(&g).Error
	if err != nil {
		return fmt.Errorf("save geofence %s: %w", g.ID, err)
	}
	return nil
}

// DeleteGeofence removes a geofence and its device assignments.
func (s *gormStore) DeleteGeofence(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("geofence_id = ?", id).Delete(&model.GeofenceAssignment{}).Error; err != nil {
			return fmt.Errorf("delete assignments for geofence %s: %w", id, err)
		}
		if err := tx.Delete(&model.Geofence{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete geofence %s: %w", id, err)
		}
		return nil
	})
}

func (s *gormStore) GeofencesByGroup(ctx context.Context, groupID string) ([]model.Geofence, error) {
	var fences []model.Geofence
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&fences).Error
	return fences, err
}

// GeofencesForSubject returns the active fences that apply to a subject: any
// fence the subject is explicitly assigned to, plus group fences that have
// no assignment rows at all (those cover every member of the group).
func (s *gormStore) GeofencesForSubject(ctx context.Context, subjectID, groupID string) ([]model.Geofence, error) {
	var fences []model.Geofence
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("id IN (SELECT geofence_id FROM geofence_assignments WHERE subject_id = ?) "+
			"OR (group_id = ? AND id NOT IN (SELECT geofence_id FROM geofence_assignments))",
			subjectID, groupID).
		Find(&fences).Error
	if err != nil {
		return nil, fmt.Errorf("load geofences for subject %s: %w", subjectID, err)
	}
	return fences, nil
}

// ReplaceGeofenceAssignments swaps the full assignment set of a fence.
func (s *gormStore) ReplaceGeofenceAssignments(ctx context.Context, geofenceID string, subjectIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("geofence_id = ?", geofenceID).Delete(&model.GeofenceAssignment{}).Error; err != nil {
			return err
		}
		if len(subjectIDs) == 0 {
			return nil
		}
		assignments := make([]model.GeofenceAssignment, 0, len(subjectIDs))
		for _, id := range subjectIDs {
			assignments = append(assignments, model.GeofenceAssignment{GeofenceID: geofenceID, SubjectID: id})
		}
		return tx.Create(&assignments).Error
	})
}
