package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/repositories"
	"github.com/jmadeiros/commonshub/backend/internal/sync"
)

// ReactionHandler handles post reaction HTTP requests
type ReactionHandler struct {
	feed               *sync.FeedSync
	postRepository     repositories.PostRepository
	reactionRepository repositories.ReactionRepository
	memberships        repositories.MembershipRepository
	notifier           *notifier
}

// NewReactionHandler creates a new ReactionHandler
func NewReactionHandler(feed *sync.FeedSync, postRepo repositories.PostRepository, reactionRepo repositories.ReactionRepository, membershipRepo repositories.MembershipRepository, notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository) *ReactionHandler {
	return &ReactionHandler{
		feed:               feed,
		postRepository:     postRepo,
		reactionRepository: reactionRepo,
		memberships:        membershipRepo,
		notifier:           newNotifier(notifRepo, userRepo),
	}
}

// RegisterReactionRoutes registers reaction routes
func (h *ReactionHandler) RegisterReactionRoutes(g *echo.Group) {
	g.POST("/orgs/:org_id/posts/:post_id/reactions", h.ToggleReaction)
	g.GET("/orgs/:org_id/posts/:post_id/reactions/status", h.GetReactionStatus)
}

// ToggleReactionRequest selects the reaction kind to toggle
type ToggleReactionRequest struct {
	Type string `json:"type"`
}

// ToggleReaction adds the caller's reaction to a post, or removes it if it
// already exists. A new reaction notifies the post's author unless the
// caller is the author.
func (h *ReactionHandler) ToggleReaction(c echo.Context) error {
	orgID := c.Param("org_id")
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	isMember, err := h.memberships.IsMember(c.Request().Context(), orgID, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !isMember {
		return echo.NewHTTPError(http.StatusForbidden, "Not a member of this organization")
	}

	var req ToggleReactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if req.Type == "" {
		req.Type = models.ReactionLike
	}

	postID := c.Param("post_id")
	post, err := h.postRepository.GetByID(c.Request().Context(), postID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	if post.OrgID != orgID {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}

	hasReacted, err := h.reactionRepository.HasReacted(c.Request().Context(), postID, currentUserID, req.Type)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if hasReacted {
		if err := h.feed.Unreact(c.Request().Context(), orgID, postID, currentUserID, req.Type); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"reacted": false}})
	}

	if err := h.feed.React(c.Request().Context(), orgID, postID, currentUserID, req.Type); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.notifier.postReaction(c.Request().Context(), post, currentUserID)

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"reacted": true}})
}

// GetReactionStatus reports whether the caller has reacted to the post
func (h *ReactionHandler) GetReactionStatus(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	reactionType := c.QueryParam("type")
	if reactionType == "" {
		reactionType = models.ReactionLike
	}

	hasReacted, err := h.reactionRepository.HasReacted(c.Request().Context(), c.Param("post_id"), currentUserID, reactionType)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"reacted": hasReacted}})
}
