package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aydetodd/todocerca-tracking/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Positions
	UpsertPosition(ctx context.Context, p model.Position) error
	MirrorProviderPosition(ctx context.Context, p model.ProviderPosition) error
	GetPosition(ctx context.Context, subjectID, groupID string) (model.Position, error)

	// History trail (append-only)
	AppendHistory(ctx context.Context, points []model.HistoryPoint) error
	HistoryRange(ctx context.Context, trackerID string, from, to time.Time) ([]model.HistoryPoint, error)

	// Presence
	GetPresence(ctx context.Context, subjectID string) (model.PresenceRecord, error)
	SavePresence(ctx context.Context, rec model.PresenceRecord) error

	// Subjects / groups
	GetProvider(ctx context.Context, subjectID string) (model.Provider, error)
	GetGroup(ctx context.Context, groupID string) (model.TrackingGroup, error)

	// Snapshots (positions joined with presence and profile)
	ActiveSnapshots(ctx context.Context, groupID string) ([]Snapshot, error)

	// Geofences
	SaveGeofence(ctx context.Context, g model.Geofence) error
	DeleteGeofence(ctx context.Context, id string) error
	GeofencesByGroup(ctx context.Context, groupID string) ([]model.Geofence, error)
	GeofencesForSubject(ctx context.Context, subjectID, groupID string) ([]model.Geofence, error)
	ReplaceGeofenceAssignments(ctx context.Context, geofenceID string, subjectIDs []string) error

	// Alerts
	CreateAlert(ctx context.Context, a *model.Alert) error
	AlertsByGroup(ctx context.Context, groupID string, unresolvedOnly bool) ([]model.Alert, error)
	MarkAlertRead(ctx context.Context, id string) error
	ResolveAlert(ctx context.Context, id string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

// positionColumns are the columns refreshed when a subject's row already
// exists; the row identity (subject_id, group_id) never changes.
var positionColumns = []string{"latitude", "longitude", "accuracy", "speed", "course", "recorded_at", "updated_at"}

// UpsertPosition writes the latest fix for a (subject, group) pair,
// overwriting any previous row for that pair.
func (s *gormStore) UpsertPosition(ctx context.Context, p model.Position) error {
	p.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_id"}, {Name: "group_id"}},
		DoUpdates: clause.AssignmentColumns(positionColumns),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("upsert position for subject %s: %w", p.SubjectID, err)
	}
	return nil
}

// MirrorProviderPosition refreshes the provider map mirror row.
func (s *gormStore) MirrorProviderPosition(ctx context.Context, p model.ProviderPosition) error {
	p.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "recorded_at", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("mirror provider position for subject %s: %w", p.SubjectID, err)
	}
	return nil
}

func (s *gormStore) GetPosition(ctx context.Context, subjectID, groupID string) (model.Position, error) {
	var p model.Position
	err := s.db.WithContext(ctx).
		Where("subject_id = ? AND group_id = ?", subjectID, groupID).
		First(&p).Error
	return p, err
}

// AppendHistory writes hardware trail points. Re-delivered points (same
// tracker and timestamp) are silently ignored so device retries stay
// idempotent.
func (s *gormStore) AppendHistory(ctx context.Context, points []model.HistoryPoint) error {
	if len(points) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&points).Error
	if err != nil {
		return fmt.Errorf("append %d history points: %w", len(points), err)
	}
	return nil
}

func (s *gormStore) HistoryRange(ctx context.Context, trackerID string, from, to time.Time) ([]model.HistoryPoint, error) {
	var points []model.HistoryPoint
	err := s.db.WithContext(ctx).
		Where("tracker_id = ? AND recorded_at >= ? AND recorded_at <= ?", trackerID, from, to).
		Order("recorded_at ASC").
		Find(&points).Error
	return points, err
}

func (s *gormStore) GetPresence(ctx context.Context, subjectID string) (model.PresenceRecord, error) {
	var rec model.PresenceRecord
	err := s.db.WithContext(ctx).First(&rec, "subject_id = ?", subjectID).Error
	return rec, err
}

func (s *gormStore) SavePresence(ctx context.Context, rec model.PresenceRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save presence for subject %s: %w", rec.SubjectID, err)
	}
	return nil
}

func (s *gormStore) GetProvider(ctx context.Context, subjectID string) (model.Provider, error) {
	var p model.Provider
	err := s.db.WithContext(ctx).First(&p, "subject_id = ?", subjectID).Error
	return p, err
}

func (s *gormStore) GetGroup(ctx context.Context, groupID string) (model.TrackingGroup, error) {
	var g model.TrackingGroup
	err := s.db.WithContext(ctx).First(&g, "id = ?", groupID).Error
	return g, err
}
