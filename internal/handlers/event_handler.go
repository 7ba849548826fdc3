package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/repositories"
)

// EventHandler handles community event and RSVP HTTP requests
type EventHandler struct {
	eventRepository repositories.EventRepository
	memberships     repositories.MembershipRepository
	notifier        *notifier
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(eventRepo repositories.EventRepository, membershipRepo repositories.MembershipRepository, notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository) *EventHandler {
	return &EventHandler{
		eventRepository: eventRepo,
		memberships:     membershipRepo,
		notifier:        newNotifier(notifRepo, userRepo),
	}
}

// RegisterEventRoutes registers event routes
func (h *EventHandler) RegisterEventRoutes(g *echo.Group) {
	g.GET("/orgs/:org_id/events", h.GetEvents)
	g.POST("/orgs/:org_id/events", h.CreateEvent)
	g.GET("/orgs/:org_id/events/:event_id", h.GetEvent)
	g.PUT("/orgs/:org_id/events/:event_id/rsvp", h.RSVP)
	g.GET("/orgs/:org_id/events/:event_id/rsvps", h.GetRSVPs)
}

func (h *EventHandler) requireMember(c echo.Context, orgID string) (string, error) {
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

// GetEvents returns the org's upcoming events
func (h *EventHandler) GetEvents(c echo.Context) error {
	orgID := c.Param("org_id")
	if _, err := h.requireMember(c, orgID); err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}

	events, err := h.eventRepository.ListByOrg(c.Request().Context(), orgID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"events": events}})
}

// CreateEvent creates a community event
func (h *EventHandler) CreateEvent(c echo.Context) error {
	orgID := c.Param("org_id")
	currentUserID, err := h.requireMember(c, orgID)
	if err != nil {
		return err
	}

	var req models.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	event := &models.Event{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		CreatorID:   currentUserID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
	}

	if err := h.eventRepository.Create(c.Request().Context(), event); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": event})
}

// GetEvent returns one event with its attendance count
func (h *EventHandler) GetEvent(c echo.Context) error {
	orgID := c.Param("org_id")
	if _, err := h.requireMember(c, orgID); err != nil {
		return err
	}

	event, err := h.eventRepository.GetByID(c.Request().Context(), c.Param("event_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Event not found")
	}
	if event.OrgID != orgID {
		return echo.NewHTTPError(http.StatusNotFound, "Event not found")
	}

	going, err := h.eventRepository.CountGoing(c.Request().Context(), event.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"event":       event,
			"going_count": going,
		},
	})
}

// RSVP records the caller's attendance response and notifies the event's
// creator
func (h *EventHandler) RSVP(c echo.Context) error {
	orgID := c.Param("org_id")
	currentUserID, err := h.requireMember(c, orgID)
	if err != nil {
		return err
	}

	var req models.RSVPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	event, err := h.eventRepository.GetByID(c.Request().Context(), c.Param("event_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Event not found")
	}
	if event.OrgID != orgID {
		return echo.NewHTTPError(http.StatusNotFound, "Event not found")
	}

	rsvp := &models.EventRSVP{
		ID:      uuid.NewString(),
		EventID: event.ID,
		UserID:  currentUserID,
		Status:  req.Status,
	}
	if err := h.eventRepository.UpsertRSVP(c.Request().Context(), rsvp); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.notifier.eventRSVP(c.Request().Context(), event, currentUserID, req.Status)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": rsvp})
}

// GetRSVPs lists an event's attendance responses
func (h *EventHandler) GetRSVPs(c echo.Context) error {
	orgID := c.Param("org_id")
	if _, err := h.requireMember(c, orgID); err != nil {
		return err
	}

	rsvps, err := h.eventRepository.ListRSVPs(c.Request().Context(), c.Param("event_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"rsvps": rsvps}})
}
