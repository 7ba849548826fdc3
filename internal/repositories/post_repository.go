package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/realtime"
)

// PostRepository defines the interface for feed post operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListFeed(ctx context.Context, orgID string, limit, offset int64) ([]models.FeedItem, error)
	ListByCategory(ctx context.Context, orgID, category string, limit, offset int64) ([]models.FeedItem, error)
	Update(ctx context.Context, id string, req *models.UpdatePostRequest) (*models.Post, error)
	SetPinned(ctx context.Context, id string, pinned bool, actorID string) (*models.Post, error)
	Delete(ctx context.Context, id string) error
	AdjustLikeCount(ctx context.Context, id string, delta int) error
	AdjustCommentCount(ctx context.Context, id string, delta int) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
	broker     *realtime.Broker
}

// NewMongoPostRepository creates a new MongoPostRepository. broker may be nil,
// in which case no change events are emitted.
func NewMongoPostRepository(db *mongo.Database, broker *realtime.Broker) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts"), broker: broker}
}

// Create stores a new post and emits an insert event to its org scope
func (r *MongoPostRepository) Create(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	if post.Category == "" {
		post.Category = models.CategoryGeneral
	}

	if _, err := r.collection.InsertOne(ctx, post); err != nil {
		return err
	}

	r.publish(realtime.OpInsert, post)
	return nil
}

// GetByID retrieves a post by its hex id
func (r *MongoPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID format: %w", err)
	}

	var post models.Post
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// ListFeed returns an org's feed, pinned posts first, then newest first,
// normalized into cacheable feed records.
func (r *MongoPostRepository) ListFeed(ctx context.Context, orgID string, limit, offset int64) ([]models.FeedItem, error) {
	return r.list(ctx, bson.M{"org_id": orgID}, limit, offset)
}

// ListByCategory returns an org's feed restricted to one category
func (r *MongoPostRepository) ListByCategory(ctx context.Context, orgID, category string, limit, offset int64) ([]models.FeedItem, error) {
	return r.list(ctx, bson.M{"org_id": orgID, "category": category}, limit, offset)
}

func (r *MongoPostRepository) list(ctx context.Context, filter bson.M, limit, offset int64) ([]models.FeedItem, error) {
	findOptions := options.Find().
		SetSkip(offset).
		SetLimit(limit).
		SetSort(bson.D{{Key: "is_pinned", Value: -1}, {Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var posts []models.Post
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}

	items := make([]models.FeedItem, len(posts))
	for i := range posts {
		items[i] = posts[i].ToFeedItem()
	}
	return items, nil
}

// Update edits a post's content or category and emits an update event
func (r *MongoPostRepository) Update(ctx context.Context, id string, req *models.UpdatePostRequest) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID format: %w", err)
	}

	set := bson.M{"updated_at": time.Now()}
	if req.Content != "" {
		set["content"] = req.Content
	}
	if req.Category != "" {
		set["category"] = req.Category
	}

	return r.findAndApply(ctx, objID, bson.M{"$set": set})
}

// SetPinned toggles a post's pin state and emits an update event
func (r *MongoPostRepository) SetPinned(ctx context.Context, id string, pinned bool, actorID string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID format: %w", err)
	}

	var update bson.M
	if pinned {
		now := time.Now()
		update = bson.M{"$set": bson.M{"is_pinned": true, "pinned_at": now, "pinned_by": actorID}}
	} else {
		update = bson.M{
			"$set":   bson.M{"is_pinned": false},
			"$unset": bson.M{"pinned_at": "", "pinned_by": ""},
		}
	}

	return r.findAndApply(ctx, objID, update)
}

func (r *MongoPostRepository) findAndApply(ctx context.Context, objID primitive.ObjectID, update bson.M) (*models.Post, error) {
	after := options.After
	var post models.Post
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": objID},
		update,
		&options.FindOneAndUpdateOptions{ReturnDocument: &after},
	).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}

	r.publish(realtime.OpUpdate, &post)
	return &post, nil
}

// Delete removes a post and emits a delete event
func (r *MongoPostRepository) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid post ID format: %w", err)
	}

	var post models.Post
	err = r.collection.FindOneAndDelete(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return err
	}

	r.publish(realtime.OpDelete, &post)
	return nil
}

// AdjustLikeCount increments or decrements a post's like count. Decrements
// only apply while the count is positive, so the stored aggregate never goes
// negative.
func (r *MongoPostRepository) AdjustLikeCount(ctx context.Context, id string, delta int) error {
	return r.adjustCount(ctx, id, "like_count", delta)
}

// AdjustCommentCount increments or decrements a post's comment count with the
// same floor at zero.
func (r *MongoPostRepository) AdjustCommentCount(ctx context.Context, id string, delta int) error {
	return r.adjustCount(ctx, id, "comment_count", delta)
}

func (r *MongoPostRepository) adjustCount(ctx context.Context, id, field string, delta int) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid post ID format: %w", err)
	}

	filter := bson.M{"_id": objID}
	if delta < 0 {
		filter[field] = bson.M{"$gt": 0}
	}

	_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: delta}})
	return err
}

func (r *MongoPostRepository) publish(op realtime.Op, post *models.Post) {
	if r.broker == nil {
		return
	}

	item := post.ToFeedItem()
	row, err := json.Marshal(item)
	if err != nil {
		log.Printf("posts: encode change event failed: %v", err)
		return
	}
	r.broker.Publish(realtime.ChangeEvent{
		Op:    op,
		Table: realtime.TablePosts,
		Scope: post.OrgID,
		Row:   row,
	})
}
