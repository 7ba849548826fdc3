package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/repositories"
)

// OrganizationHandler handles organization and membership HTTP requests
type OrganizationHandler struct {
	memberships    repositories.MembershipRepository
	userRepository repositories.UserRepository
}

// NewOrganizationHandler creates a new OrganizationHandler
func NewOrganizationHandler(membershipRepo repositories.MembershipRepository, userRepo repositories.UserRepository) *OrganizationHandler {
	return &OrganizationHandler{
		memberships:    membershipRepo,
		userRepository: userRepo,
	}
}

// RegisterOrganizationRoutes registers organization routes
func (h *OrganizationHandler) RegisterOrganizationRoutes(g *echo.Group) {
	g.POST("/orgs", h.CreateOrganization)
	g.GET("/orgs/:org_id", h.GetOrganization)
	g.POST("/orgs/:org_id/join", h.Join)
	g.DELETE("/orgs/:org_id/membership", h.Leave)
	g.GET("/orgs/:org_id/members", h.GetMembers)
	g.GET("/me/orgs", h.GetMyOrganizations)
}

// CreateOrganizationRequest defines the request body for creating an org
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=2,max=80"`
	Slug string `json:"slug" validate:"required,min=2,max=40,lowercase"`
}

// CreateOrganization creates an organization; the creator becomes its admin
func (h *OrganizationHandler) CreateOrganization(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req CreateOrganizationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if _, err := h.memberships.GetOrganizationBySlug(c.Request().Context(), req.Slug); err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Organization slug already taken")
	}

	org := &models.Organization{
		ID:   uuid.NewString(),
		Name: req.Name,
		Slug: req.Slug,
	}
	if err := h.memberships.CreateOrganization(c.Request().Context(), org); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	membership := &models.Membership{
		ID:     uuid.NewString(),
		OrgID:  org.ID,
		UserID: currentUserID,
		Role:   models.RoleAdmin,
	}
	if err := h.memberships.Join(c.Request().Context(), membership); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": org})
}

// GetOrganization returns one organization
func (h *OrganizationHandler) GetOrganization(c echo.Context) error {
	org, err := h.memberships.GetOrganization(c.Request().Context(), c.Param("org_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Organization not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": org})
}

// Join adds the caller to an organization as a member
func (h *OrganizationHandler) Join(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	orgID := c.Param("org_id")
	if _, err := h.memberships.GetOrganization(c.Request().Context(), orgID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Organization not found")
	}

	isMember, err := h.memberships.IsMember(c.Request().Context(), orgID, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if isMember {
		return echo.NewHTTPError(http.StatusConflict, "Already a member")
	}

	membership := &models.Membership{
		ID:     uuid.NewString(),
		OrgID:  orgID,
		UserID: currentUserID,
		Role:   models.RoleMember,
	}
	if err := h.memberships.Join(c.Request().Context(), membership); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": membership})
}

// Leave removes the caller from an organization
func (h *OrganizationHandler) Leave(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	if err := h.memberships.Leave(c.Request().Context(), c.Param("org_id"), currentUserID); err != nil {
		if repositories.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Membership not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

// EnrichedMember pairs a membership with the member's profile
type EnrichedMember struct {
	models.Membership
	User *models.UserCompact `json:"user,omitempty"`
}

// GetMembers lists an organization's members
func (h *OrganizationHandler) GetMembers(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	orgID := c.Param("org_id")
	isMember, err := h.memberships.IsMember(c.Request().Context(), orgID, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !isMember {
		return echo.NewHTTPError(http.StatusForbidden, "Not a member of this organization")
	}

	members, err := h.memberships.ListMembers(c.Request().Context(), orgID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	enriched := make([]EnrichedMember, len(members))
	for i, m := range members {
		enriched[i] = EnrichedMember{Membership: m}
		user, err := h.userRepository.GetByID(c.Request().Context(), m.UserID)
		if err == nil {
			compact := user.ToCompact()
			enriched[i].User = &compact
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"members": enriched}})
}

// GetMyOrganizations lists the org ids the caller belongs to
func (h *OrganizationHandler) GetMyOrganizations(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	orgIDs, err := h.memberships.ListOrgsForUser(c.Request().Context(), currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"org_ids": orgIDs}})
}
