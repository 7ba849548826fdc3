package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmadeiros/commonshub/backend/internal/models"
)

// MembershipRepository defines the interface for organization membership
// operations. Membership gates feed access: a user's subscription scopes are
// the orgs they belong to.
type MembershipRepository interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error)
	Join(ctx context.Context, membership *models.Membership) error
	Leave(ctx context.Context, orgID, userID string) error
	IsMember(ctx context.Context, orgID, userID string) (bool, error)
	ListMembers(ctx context.Context, orgID string) ([]models.Membership, error)
	ListOrgsForUser(ctx context.Context, userID string) ([]string, error)
}

type postgresMembershipRepository struct {
	db *gorm.DB
}

// NewPostgresMembershipRepository creates a MembershipRepository backed by
// PostgreSQL
func NewPostgresMembershipRepository(db *gorm.DB) MembershipRepository {
	return &postgresMembershipRepository{db: db}
}

func (r *postgresMembershipRepository) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *postgresMembershipRepository) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *postgresMembershipRepository) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.WithContext(ctx).First(&org, "slug = ?", slug).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *postgresMembershipRepository) Join(ctx context.Context, membership *models.Membership) error {
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}
	if membership.Role == "" {
		membership.Role = models.RoleMember
	}
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = time.Now()
	}

	err := r.db.WithContext(ctx).Create(membership).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	return err
}

func (r *postgresMembershipRepository) Leave(ctx context.Context, orgID, userID string) error {
	result := r.db.WithContext(ctx).
		Delete(&models.Membership{}, "org_id = ? AND user_id = ?", orgID, userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresMembershipRepository) IsMember(ctx context.Context, orgID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *postgresMembershipRepository) ListMembers(ctx context.Context, orgID string) ([]models.Membership, error) {
	var members []models.Membership
	err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *postgresMembershipRepository) ListOrgsForUser(ctx context.Context, userID string) ([]string, error) {
	var orgIDs []string
	err := r.db.WithContext(ctx).Model(&models.Membership{}).
		Where("user_id = ?", userID).
		Pluck("org_id", &orgIDs).Error
	if err != nil {
		return nil, err
	}
	return orgIDs, nil
}
