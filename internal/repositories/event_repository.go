package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmadeiros/commonshub/backend/internal/models"
)

// EventRepository defines the interface for community event and RSVP
// operations. Events back the feed's linked_event_id references; RSVPs feed
// the "rsvp" notification fan-out.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id string) (*models.Event, error)
	ListByOrg(ctx context.Context, orgID string, limit int) ([]models.Event, error)
	UpsertRSVP(ctx context.Context, rsvp *models.EventRSVP) error
	ListRSVPs(ctx context.Context, eventID string) ([]models.EventRSVP, error)
	CountGoing(ctx context.Context, eventID string) (int64, error)
}

type postgresEventRepository struct {
	db *gorm.DB
}

// NewPostgresEventRepository creates an EventRepository backed by PostgreSQL
func NewPostgresEventRepository(db *gorm.DB) EventRepository {
	return &postgresEventRepository{db: db}
}

func (r *postgresEventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *postgresEventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *postgresEventRepository) ListByOrg(ctx context.Context, orgID string, limit int) ([]models.Event, error) {
	query := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("start_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// UpsertRSVP inserts the caller's RSVP or updates the status of an existing
// one. A user has at most one RSVP per event.
func (r *postgresEventRepository) UpsertRSVP(ctx context.Context, rsvp *models.EventRSVP) error {
	if rsvp.ID == "" {
		rsvp.ID = uuid.NewString()
	}
	now := time.Now()
	if rsvp.CreatedAt.IsZero() {
		rsvp.CreatedAt = now
	}
	rsvp.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(rsvp).Error
}

func (r *postgresEventRepository) ListRSVPs(ctx context.Context, eventID string) ([]models.EventRSVP, error) {
	var rsvps []models.EventRSVP
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&rsvps).Error
	if err != nil {
		return nil, err
	}
	return rsvps, nil
}

func (r *postgresEventRepository) CountGoing(ctx context.Context, eventID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EventRSVP{}).
		Where("event_id = ? AND status = ?", eventID, models.RSVPGoing).
		Count(&count).Error
	return count, err
}
