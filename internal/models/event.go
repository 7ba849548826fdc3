package models

import "time"

// RSVP statuses
const (
	RSVPGoing    = "going"
	RSVPMaybe    = "maybe"
	RSVPDeclined = "declined"
)

// Event represents a community event (PostgreSQL).
// Feed posts may link to an event via LinkedEventID.
type Event struct {
	ID          string     `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID       string     `json:"org_id" gorm:"type:uuid;index"`
	CreatorID   string     `json:"creator_id" gorm:"type:uuid;index"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	StartAt     time.Time  `json:"start_at" gorm:"index"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EventRSVP records a member's attendance response to an event
type EventRSVP struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	EventID   string    `json:"event_id" gorm:"type:uuid;index:idx_rsvp_event_user,unique"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index:idx_rsvp_event_user,unique"`
	Status    string    `json:"status" gorm:"size:10"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateEventRequest defines the request body for creating an event
type CreateEventRequest struct {
	Title       string     `json:"title" validate:"required,min=2,max=120"`
	Description string     `json:"description,omitempty" validate:"omitempty,max=5000"`
	Location    string     `json:"location,omitempty" validate:"omitempty,max=200"`
	StartAt     time.Time  `json:"start_at" validate:"required"`
	EndAt       *time.Time `json:"end_at,omitempty"`
}

// RSVPRequest sets the caller's attendance status
type RSVPRequest struct {
	Status string `json:"status" validate:"required,oneof=going maybe declined"`
}
