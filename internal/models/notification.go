package models

import "time"

// Notification types. Notifications are created as side effects of other
// users' actions and delivered to exactly one owning user.
const (
	NotificationReaction       = "reaction"
	NotificationComment        = "comment"
	NotificationMention        = "mention"
	NotificationRSVP           = "rsvp"
	NotificationApprovalNeeded = "approval_needed"
	NotificationEventReminder  = "event_reminder"
	NotificationProjectUpdate  = "project_update"
)

// Notification represents a user notification (PostgreSQL).
// The read flag only ever transitions false -> true in this codebase.
type Notification struct {
	ID        string         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string         `json:"user_id" gorm:"type:uuid;index"`
	ActorID   *string        `json:"actor_id,omitempty" gorm:"type:uuid;index"` // who triggered it, nil for system notifications
	Type      string         `json:"type" gorm:"size:30;index"`
	Title     string         `json:"title"`
	Link      string         `json:"link,omitempty"`
	Payload   map[string]any `json:"payload,omitempty" gorm:"serializer:json"`
	Read      bool           `json:"read" gorm:"default:false;index"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
}
