package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/repositories"
	"github.com/jmadeiros/commonshub/backend/internal/sync"
)

// CommentHandler handles comment-related HTTP requests
type CommentHandler struct {
	feed              *sync.FeedSync
	postRepository    repositories.PostRepository
	commentRepository repositories.CommentRepository
	memberships       repositories.MembershipRepository
	userRepository    repositories.UserRepository
	notifier          *notifier
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(feed *sync.FeedSync, postRepo repositories.PostRepository, commentRepo repositories.CommentRepository, membershipRepo repositories.MembershipRepository, notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository) *CommentHandler {
	return &CommentHandler{
		feed:              feed,
		postRepository:    postRepo,
		commentRepository: commentRepo,
		memberships:       membershipRepo,
		userRepository:    userRepo,
		notifier:          newNotifier(notifRepo, userRepo),
	}
}

// RegisterCommentRoutes registers comment routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.GET("/orgs/:org_id/posts/:post_id/comments", h.GetComments)
	g.POST("/orgs/:org_id/posts/:post_id/comments", h.CreateComment)
	g.DELETE("/orgs/:org_id/posts/:post_id/comments/:comment_id", h.DeleteComment)
}

func (h *CommentHandler) requireMember(c echo.Context, orgID string) (string, error) {
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

// EnrichedComment includes author info
type EnrichedComment struct {
	models.Comment
	Author *models.UserCompact `json:"author,omitempty"`
}

// GetComments returns a post's comments
func (h *CommentHandler) GetComments(c echo.Context) error {
	orgID := c.Param("org_id")
	if _, err := h.requireMember(c, orgID); err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 200 {
		limit = 100
	}

	comments, err := h.commentRepository.ListByPost(c.Request().Context(), c.Param("post_id"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	enriched := make([]EnrichedComment, len(comments))
	userCache := make(map[string]models.UserCompact)
	for i, comment := range comments {
		enriched[i] = EnrichedComment{Comment: comment}
		if author, ok := userCache[comment.AuthorID]; ok {
			enriched[i].Author = &author
			continue
		}
		user, err := h.userRepository.GetByID(c.Request().Context(), comment.AuthorID)
		if err == nil {
			compact := user.ToCompact()
			userCache[comment.AuthorID] = compact
			enriched[i].Author = &compact
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"comments": enriched}})
}

// CreateComment adds a comment to a post and notifies the post's author
func (h *CommentHandler) CreateComment(c echo.Context) error {
	orgID := c.Param("org_id")
	currentUserID, err := h.requireMember(c, orgID)
	if err != nil {
		return err
	}

	var req models.CreateCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	postID := c.Param("post_id")
	post, err := h.postRepository.GetByID(c.Request().Context(), postID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	if post.OrgID != orgID {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}

	comment := &models.Comment{
		ID:       uuid.NewString(),
		PostID:   postID,
		AuthorID: currentUserID,
		Content:  req.Content,
	}

	if err := h.feed.AddComment(c.Request().Context(), orgID, comment); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.notifier.postComment(c.Request().Context(), post, currentUserID)

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": comment})
}

// DeleteComment removes a comment. Only its author may delete it.
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	orgID := c.Param("org_id")
	currentUserID, err := h.requireMember(c, orgID)
	if err != nil {
		return err
	}

	commentID := c.Param("comment_id")
	comment, err := h.commentRepository.GetByID(c.Request().Context(), commentID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Comment not found")
	}
	if comment.AuthorID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "Only the author can delete this comment")
	}

	if err := h.feed.DeleteComment(c.Request().Context(), orgID, comment.PostID, commentID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}
