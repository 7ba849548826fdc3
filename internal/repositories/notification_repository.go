package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/realtime"
)

// NotificationListOptions narrow a notification fetch.
type NotificationListOptions struct {
	UnreadOnly bool
	Limit      int
}

// NotificationRepository defines the interface for notification operations.
// Queries return records newest first; none of the methods retry, the caller
// owns retry policy.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string, opts NotificationListOptions) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID string, ids []string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type postgresNotificationRepository struct {
	db     *gorm.DB
	broker *realtime.Broker
}

// NewPostgresNotificationRepository creates a NotificationRepository backed
// by PostgreSQL. broker may be nil, in which case no change events are
// emitted.
func NewPostgresNotificationRepository(db *gorm.DB, broker *realtime.Broker) NotificationRepository {
	return &postgresNotificationRepository{db: db, broker: broker}
}

func (r *postgresNotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return err
	}

	r.publish(realtime.OpInsert, notification)
	return nil
}

func (r *postgresNotificationRepository) ListByUser(ctx context.Context, userID string, opts NotificationListOptions) ([]models.Notification, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	if opts.UnreadOnly {
		query = query.Where("read = false")
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var notifications []models.Notification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *postgresNotificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = false", userID).
		Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkRead(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	now := time.Now()
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Updates(map[string]any{"read": true, "read_at": now}).Error
	if err != nil {
		return err
	}

	r.publishUpdated(ctx, userID, ids)
	return nil
}

func (r *postgresNotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = false", userID).
		Pluck("id", &ids).Error
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	now := time.Now()
	err = r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Updates(map[string]any{"read": true, "read_at": now}).Error
	if err != nil {
		return err
	}

	r.publishUpdated(ctx, userID, ids)
	return nil
}

// publishUpdated reloads the touched rows and emits update events. Delivery
// is best effort: a failed reload only costs subscribers the echo, the next
// reconcile refetch corrects them.
func (r *postgresNotificationRepository) publishUpdated(ctx context.Context, userID string, ids []string) {
	if r.broker == nil {
		return
	}

	var rows []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&rows).Error
	if err != nil {
		log.Printf("notifications: reload for update events failed: %v", err)
		return
	}
	for i := range rows {
		r.publish(realtime.OpUpdate, &rows[i])
	}
}

func (r *postgresNotificationRepository) publish(op realtime.Op, notification *models.Notification) {
	if r.broker == nil {
		return
	}

	row, err := json.Marshal(notification)
	if err != nil {
		log.Printf("notifications: encode change event failed: %v", err)
		return
	}
	r.broker.Publish(realtime.ChangeEvent{
		Op:    op,
		Table: realtime.TableNotifications,
		Scope: notification.UserID,
		Row:   row,
	})
}

// IsNotFound reports whether err is the GORM missing-record error or the
// repository sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound)
}
