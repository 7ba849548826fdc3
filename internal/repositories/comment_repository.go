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

// CommentRepository defines the interface for comment operations. Change
// events for comments are addressed to the parent post's org scope, since
// feed listeners adjust the parent's comment count from them.
type CommentRepository interface {
	Create(ctx context.Context, orgID string, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string, limit int) ([]models.Comment, error)
	Delete(ctx context.Context, orgID, id string) error
	CountByPost(ctx context.Context, postID string) (int64, error)
}

type postgresCommentRepository struct {
	db     *gorm.DB
	broker *realtime.Broker
}

// NewPostgresCommentRepository creates a CommentRepository backed by
// PostgreSQL. broker may be nil, in which case no change events are emitted.
func NewPostgresCommentRepository(db *gorm.DB, broker *realtime.Broker) CommentRepository {
	return &postgresCommentRepository{db: db, broker: broker}
}

func (r *postgresCommentRepository) Create(ctx context.Context, orgID string, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return err
	}

	r.publish(realtime.OpInsert, orgID, comment)
	return nil
}

func (r *postgresCommentRepository) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	err := r.db.WithContext(ctx).First(&comment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &comment, nil
}

func (r *postgresCommentRepository) ListByPost(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	query := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var comments []models.Comment
	if err := query.Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *postgresCommentRepository) Delete(ctx context.Context, orgID, id string) error {
	comment, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Delete(&models.Comment{}, "id = ?", id).Error; err != nil {
		return err
	}

	r.publish(realtime.OpDelete, orgID, comment)
	return nil
}

func (r *postgresCommentRepository) CountByPost(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	return count, err
}

func (r *postgresCommentRepository) publish(op realtime.Op, orgID string, comment *models.Comment) {
	if r.broker == nil {
		return
	}

	row, err := json.Marshal(comment)
	if err != nil {
		log.Printf("comments: encode change event failed: %v", err)
		return
	}
	r.broker.Publish(realtime.ChangeEvent{
		Op:    op,
		Table: realtime.TableComments,
		Scope: orgID,
		Row:   row,
	})
}
