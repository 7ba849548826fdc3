package models

import "time"

// Membership roles
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Organization is the tenant boundary: feeds, events and posts are scoped to
// one organization.
type Organization struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug" gorm:"uniqueIndex"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a user to an organization
type Membership struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID     string    `json:"org_id" gorm:"type:uuid;index:idx_membership_org_user,unique"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index:idx_membership_org_user,unique"`
	Role      string    `json:"role" gorm:"size:10;default:member"`
	CreatedAt time.Time `json:"created_at"`
}
