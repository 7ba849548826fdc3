package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/repositories"
	"github.com/jmadeiros/commonshub/backend/internal/sync"
)

// FeedHandler handles the org feed: listing, post lifecycle and the feed
// event stream. All routes are scoped to one organization and gated on
// membership.
type FeedHandler struct {
	feed           *sync.FeedSync
	postRepository repositories.PostRepository
	memberships    repositories.MembershipRepository
	userRepository repositories.UserRepository
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(feed *sync.FeedSync, postRepo repositories.PostRepository, membershipRepo repositories.MembershipRepository, userRepo repositories.UserRepository) *FeedHandler {
	return &FeedHandler{
		feed:           feed,
		postRepository: postRepo,
		memberships:    membershipRepo,
		userRepository: userRepo,
	}
}

// RegisterFeedRoutes registers feed and post routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/orgs/:org_id/feed", h.GetFeed)
	g.GET("/orgs/:org_id/feed/stream", h.Stream)
	g.POST("/orgs/:org_id/posts", h.CreatePost)
	g.GET("/orgs/:org_id/posts/:post_id", h.GetPost)
	g.PUT("/orgs/:org_id/posts/:post_id", h.UpdatePost)
	g.PUT("/orgs/:org_id/posts/:post_id/pin", h.PinPost)
	g.DELETE("/orgs/:org_id/posts/:post_id", h.DeletePost)
}

// requireMember resolves the caller and checks org membership. Returns the
// user id or writes the error response.
func (h *FeedHandler) requireMember(c echo.Context, orgID string) (string, error) {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	isMember, err := h.memberships.IsMember(c.Request().Context(), orgID, currentUserID)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !isMember {
		return "", echo.NewHTTPError(http.StatusForbidden, "Not a member of this organization")
	}
	return currentUserID, nil
}

// EnrichedFeedItem includes author info
type EnrichedFeedItem struct {
	models.FeedItem
	Author *models.UserCompact `json:"author,omitempty"`
}

func (h *FeedHandler) enrichFeed(c echo.Context, items []models.FeedItem) []EnrichedFeedItem {
	enriched := make([]EnrichedFeedItem, len(items))
	userCache := make(map[string]models.UserCompact)

	for i, item := range items {
		enriched[i] = EnrichedFeedItem{FeedItem: item}
		if author, ok := userCache[item.AuthorID]; ok {
			enriched[i].Author = &author
			continue
		}
		user, err := h.userRepository.GetByID(c.Request().Context(), item.AuthorID)
		if err == nil {
			compact := user.ToCompact()
			userCache[item.AuthorID] = compact
			enriched[i].Author = &compact
		}
	}
	return enriched
}

// GetFeed returns the org's feed, pinned posts first then newest first
func (h *FeedHandler) GetFeed(c echo.Context) error {
	orgID := c.Param("org_id")
	if _, err := h.requireMember(c, orgID); err != nil {
		return err
	}

	var items []models.FeedItem
	var err error
	if category := c.QueryParam("category"); category != "" {
		limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
		if limit < 1 || limit > 100 {
			limit = 50
		}
		items, err = h.postRepository.ListByCategory(c.Request().Context(), orgID, category, limit, 0)
	} else {
		items, err = h.feed.List(c.Request().Context(), orgID)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"posts": h.enrichFeed(c, items),
		},
	})
}

// GetPost returns a single post
func (h *FeedHandler) GetPost(c echo.Context) error {
	orgID := c.Param("org_id")
	if _, err := h.requireMember(c, orgID); err != nil {
		return err
	}

	post, err := h.postRepository.GetByID(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		if repositories.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if post.OrgID != orgID {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": post})
}

// CreatePost publishes a new post to the org feed
func (h *FeedHandler) CreatePost(c echo.Context) error {
	orgID := c.Param("org_id")
	currentUserID, err := h.requireMember(c, orgID)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	post := &models.Post{
		OrgID:           orgID,
		AuthorID:        currentUserID,
		Content:         req.Content,
		Category:        req.Category,
		LinkedEventID:   req.LinkedEventID,
		LinkedProjectID: req.LinkedProjectID,
	}

	item, err := h.feed.CreatePost(c.Request().Context(), post)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": item})
}

// UpdatePost edits a post's content or category. Only the author may edit.
func (h *FeedHandler) UpdatePost(c echo.Context) error {
	orgID := c.Param("org_id")
	currentUserID, err := h.requireMember(c, orgID)
	if err != nil {
		return err
	}

	postID := c.Param("post_id")
	post, err := h.postRepository.GetByID(c.Request().Context(), postID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	if post.AuthorID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "Only the author can edit this post")
	}

	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	item, err := h.feed.EditPost(c.Request().Context(), orgID, postID, &req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": item})
}

// PinRequest toggles a post's pin state
type PinRequest struct {
	Pinned bool `json:"pinned"`
}

// PinPost pins or unpins a post. Only org admins may pin.
func (h *FeedHandler) PinPost(c echo.Context) error {
	orgID := c.Param("org_id")
	currentUserID, err := h.requireMember(c, orgID)
	if err != nil {
		return err
	}

	if err := h.requireAdmin(c, orgID, currentUserID); err != nil {
		return err
	}

	var req PinRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	item, err := h.feed.PinPost(c.Request().Context(), orgID, c.Param("post_id"), req.Pinned, currentUserID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": item})
}

func (h *FeedHandler) requireAdmin(c echo.Context, orgID, userID string) error {
	members, err := h.memberships.ListMembers(c.Request().Context(), orgID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	for _, m := range members {
		if m.UserID == userID && m.Role == models.RoleAdmin {
			return nil
		}
	}
	return echo.NewHTTPError(http.StatusForbidden, "Admin role required")
}

// DeletePost removes a post. The author or an org admin may delete.
func (h *FeedHandler) DeletePost(c echo.Context) error {
	orgID := c.Param("org_id")
	currentUserID, err := h.requireMember(c, orgID)
	if err != nil {
		return err
	}

	postID := c.Param("post_id")
	post, err := h.postRepository.GetByID(c.Request().Context(), postID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	if post.AuthorID != currentUserID {
		if err := h.requireAdmin(c, orgID, currentUserID); err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "Only the author or an admin can delete this post")
		}
	}

	if err := h.feed.DeletePost(c.Request().Context(), orgID, postID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

// Stream pushes the org's feed change events as server-sent events
func (h *FeedHandler) Stream(c echo.Context) error {
	orgID := c.Param("org_id")
	if _, err := h.requireMember(c, orgID); err != nil {
		return err
	}

	listener, err := h.feed.Listen(c.Request().Context(), orgID, getTokenFromContext(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if listener == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "No session")
	}
	defer listener.Close()

	return streamEvents(c, listener)
}
