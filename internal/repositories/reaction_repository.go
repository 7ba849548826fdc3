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

// ReactionRepository defines the interface for post reaction operations.
// Like comments, reaction change events are addressed to the parent post's
// org scope so feed listeners can adjust the like count.
type ReactionRepository interface {
	Create(ctx context.Context, orgID string, reaction *models.Reaction) error
	Delete(ctx context.Context, orgID, postID, userID, reactionType string) error
	HasReacted(ctx context.Context, postID, userID, reactionType string) (bool, error)
	CountByPost(ctx context.Context, postID string) (int64, error)
}

type postgresReactionRepository struct {
	db     *gorm.DB
	broker *realtime.Broker
}

// NewPostgresReactionRepository creates a ReactionRepository backed by
// PostgreSQL. broker may be nil, in which case no change events are emitted.
func NewPostgresReactionRepository(db *gorm.DB, broker *realtime.Broker) ReactionRepository {
	return &postgresReactionRepository{db: db, broker: broker}
}

func (r *postgresReactionRepository) Create(ctx context.Context, orgID string, reaction *models.Reaction) error {
	if reaction.ID == "" {
		reaction.ID = uuid.NewString()
	}
	if reaction.Type == "" {
		reaction.Type = models.ReactionLike
	}
	if reaction.CreatedAt.IsZero() {
		reaction.CreatedAt = time.Now()
	}

	if err := r.db.WithContext(ctx).Create(reaction).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAlreadyExists
		}
		return err
	}

	r.publish(realtime.OpInsert, orgID, reaction)
	return nil
}

func (r *postgresReactionRepository) Delete(ctx context.Context, orgID, postID, userID, reactionType string) error {
	var reaction models.Reaction
	err := r.db.WithContext(ctx).
		First(&reaction, "post_id = ? AND user_id = ? AND type = ?", postID, userID, reactionType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := r.db.WithContext(ctx).Delete(&models.Reaction{}, "id = ?", reaction.ID).Error; err != nil {
		return err
	}

	r.publish(realtime.OpDelete, orgID, &reaction)
	return nil
}

func (r *postgresReactionRepository) HasReacted(ctx context.Context, postID, userID, reactionType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Reaction{}).
		Where("post_id = ? AND user_id = ? AND type = ?", postID, userID, reactionType).
		Count(&count).Error
	return count > 0, err
}

func (r *postgresReactionRepository) CountByPost(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Reaction{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	return count, err
}

func (r *postgresReactionRepository) publish(op realtime.Op, orgID string, reaction *models.Reaction) {
	if r.broker == nil {
		return
	}

	row, err := json.Marshal(reaction)
	if err != nil {
		log.Printf("reactions: encode change event failed: %v", err)
		return
	}
	r.broker.Publish(realtime.ChangeEvent{
		Op:    op,
		Table: realtime.TableReactions,
		Scope: orgID,
		Row:   row,
	})
}
