package models

import "time"

// Comment represents a comment on a feed post (PostgreSQL).
// The parent post's comment count is a derived aggregate maintained
// best-effort from comment inserts and deletes.
type Comment struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	PostID    string    `json:"post_id" gorm:"index"`
	AuthorID  string    `json:"author_id" gorm:"type:uuid;index"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// CreateCommentRequest defines the request body for adding a comment
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}
