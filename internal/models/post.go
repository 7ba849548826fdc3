package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post categories shown as filter tabs in the feed
const (
	CategoryGeneral      = "general"
	CategoryAnnouncement = "announcement"
	CategoryEvent        = "event"
	CategoryProject      = "project"
	CategoryQuestion     = "question"
)

// Post represents a feed post stored in MongoDB
type Post struct {
	ID              primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	OrgID           string             `json:"org_id" bson:"org_id"`
	AuthorID        string             `json:"author_id" bson:"author_id"`
	Content         string             `json:"content" bson:"content"`
	Category        string             `json:"category" bson:"category"`
	LinkedEventID   string             `json:"linked_event_id,omitempty" bson:"linked_event_id,omitempty"`
	LinkedProjectID string             `json:"linked_project_id,omitempty" bson:"linked_project_id,omitempty"`
	IsPinned        bool               `json:"is_pinned" bson:"is_pinned"`
	PinnedAt        *time.Time         `json:"pinned_at,omitempty" bson:"pinned_at,omitempty"`
	PinnedBy        string             `json:"pinned_by,omitempty" bson:"pinned_by,omitempty"`
	LikeCount       int                `json:"like_count" bson:"like_count"`
	CommentCount    int                `json:"comment_count" bson:"comment_count"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

// FeedItem is the normalized feed record handed to the cache and the API.
// Like/comment counts are derived aggregates: this layer only adjusts them as
// responsiveness hints until the next authoritative refetch corrects them.
type FeedItem struct {
	ID              string     `json:"id"`
	OrgID           string     `json:"org_id"`
	AuthorID        string     `json:"author_id"`
	Content         string     `json:"content"`
	Category        string     `json:"category"`
	LinkedEventID   string     `json:"linked_event_id,omitempty"`
	LinkedProjectID string     `json:"linked_project_id,omitempty"`
	IsPinned        bool       `json:"is_pinned"`
	PinnedAt        *time.Time `json:"pinned_at,omitempty"`
	PinnedBy        string     `json:"pinned_by,omitempty"`
	LikeCount       int        `json:"like_count"`
	CommentCount    int        `json:"comment_count"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ToFeedItem normalizes a stored post into the cacheable feed record.
func (p *Post) ToFeedItem() FeedItem {
	return FeedItem{
		ID:              p.ID.Hex(),
		OrgID:           p.OrgID,
		AuthorID:        p.AuthorID,
		Content:         p.Content,
		Category:        p.Category,
		LinkedEventID:   p.LinkedEventID,
		LinkedProjectID: p.LinkedProjectID,
		IsPinned:        p.IsPinned,
		PinnedAt:        p.PinnedAt,
		PinnedBy:        p.PinnedBy,
		LikeCount:       p.LikeCount,
		CommentCount:    p.CommentCount,
		CreatedAt:       p.CreatedAt,
	}
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content         string `json:"content" validate:"required,min=1,max=5000"`
	Category        string `json:"category" validate:"required,oneof=general announcement event project question"`
	LinkedEventID   string `json:"linked_event_id,omitempty" validate:"omitempty,uuid"`
	LinkedProjectID string `json:"linked_project_id,omitempty" validate:"omitempty,uuid"`
}

// UpdatePostRequest defines the request body for editing an existing post
type UpdatePostRequest struct {
	Content  string `json:"content,omitempty" validate:"omitempty,min=1,max=5000"`
	Category string `json:"category,omitempty" validate:"omitempty,oneof=general announcement event project question"`
}
