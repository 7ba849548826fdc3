package models

import "time"

// Reaction kinds currently supported by the feed
const (
	ReactionLike      = "like"
	ReactionCelebrate = "celebrate"
	ReactionHeart     = "heart"
)

// Reaction represents a user's reaction to a feed post (PostgreSQL).
// A user has at most one reaction of a given type per post.
type Reaction struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	PostID    string    `json:"post_id" gorm:"index:idx_reaction_post_user,unique"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index:idx_reaction_post_user,unique"`
	Type      string    `json:"type" gorm:"size:20;default:like;index:idx_reaction_post_user,unique"`
	CreatedAt time.Time `json:"created_at"`
}
