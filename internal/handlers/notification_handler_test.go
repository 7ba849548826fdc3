package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/realtime"
	"github.com/jmadeiros/commonshub/backend/internal/repositories"
	"github.com/jmadeiros/commonshub/backend/internal/sync"
)

type stubNotificationRepo struct {
	byUser map[string][]models.Notification
}

func (s *stubNotificationRepo) Create(_ context.Context, n *models.Notification) error {
	s.byUser[n.UserID] = append(s.byUser[n.UserID], *n)
	return nil
}

func (s *stubNotificationRepo) ListByUser(_ context.Context, userID string, opts repositories.NotificationListOptions) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range s.byUser[userID] {
		if opts.UnreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *stubNotificationRepo) UnreadCount(_ context.Context, userID string) (int64, error) {
	var count int64
	for _, n := range s.byUser[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *stubNotificationRepo) MarkRead(_ context.Context, userID string, ids []string) error {
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	list := s.byUser[userID]
	for i := range list {
		if _, ok := idSet[list[i].ID]; ok {
			list[i].Read = true
		}
	}
	return nil
}

func (s *stubNotificationRepo) MarkAllRead(_ context.Context, userID string) error {
	list := s.byUser[userID]
	for i := range list {
		list[i].Read = true
	}
	return nil
}

type stubUserRepo struct {
	users map[string]models.User
}

func (s *stubUserRepo) Create(_ context.Context, u *models.User) error {
	s.users[u.ID] = *u
	return nil
}

func (s *stubUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (s *stubUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *stubUserRepo) GetByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	for _, u := range s.users {
		if u.FirebaseUID == uid {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *stubUserRepo) Update(_ context.Context, u *models.User) error {
	s.users[u.ID] = *u
	return nil
}

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (string, error) {
	return "subject", nil
}

func newTestNotificationHandler(repo *stubNotificationRepo, users *stubUserRepo) (*NotificationHandler, *sync.NotificationSync) {
	broker := realtime.NewBroker(realtime.NewHub(), nil, stubVerifier{})
	engine := sync.NewNotificationSync(repo, broker, nil, sync.Options{
		SettleDelay:  10 * time.Millisecond,
		CacheIdleTTL: time.Minute,
	})
	return NewNotificationHandler(engine, users), engine
}

func authedRequest(method, target string, userID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	return c, rec
}

func TestGetNotificationsRequiresAuth(t *testing.T) {
	repo := &stubNotificationRepo{byUser: map[string][]models.Notification{}}
	users := &stubUserRepo{users: map[string]models.User{}}
	h, engine := newTestNotificationHandler(repo, users)
	defer engine.Close()

	c, _ := authedRequest(http.MethodGet, "/api/v1/notifications", "")
	err := h.GetNotifications(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestGetNotificationsEnrichesActor(t *testing.T) {
	actorID := "actor-1"
	repo := &stubNotificationRepo{byUser: map[string][]models.Notification{
		"u1": {{
			ID:      "n1",
			UserID:  "u1",
			ActorID: &actorID,
			Type:    models.NotificationReaction,
			Title:   "Ana liked your post",
		}},
	}}
	users := &stubUserRepo{users: map[string]models.User{
		actorID: {ID: actorID, DisplayName: "Ana"},
	}}
	h, engine := newTestNotificationHandler(repo, users)
	defer engine.Close()

	c, rec := authedRequest(http.MethodGet, "/api/v1/notifications", "u1")
	if err := h.GetNotifications(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Data struct {
			Notifications []EnrichedNotification `json:"notifications"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Data.Notifications) != 1 {
		t.Fatalf("expected one notification, got %d", len(body.Data.Notifications))
	}
	actor := body.Data.Notifications[0].Actor
	if actor == nil || actor.DisplayName != "Ana" {
		t.Fatalf("actor not enriched: %+v", actor)
	}
}

func TestMarkAllAsReadZeroesUnreadCount(t *testing.T) {
	repo := &stubNotificationRepo{byUser: map[string][]models.Notification{
		"u1": {
			{ID: "n1", UserID: "u1"},
			{ID: "n2", UserID: "u1"},
		},
	}}
	users := &stubUserRepo{users: map[string]models.User{}}
	h, engine := newTestNotificationHandler(repo, users)
	defer engine.Close()

	c, rec := authedRequest(http.MethodPut, "/api/v1/notifications/read-all", "u1")
	if err := h.MarkAllAsRead(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, rec = authedRequest(http.MethodGet, "/api/v1/notifications/unread-count", "u1")
	if err := h.GetUnreadCount(c); err != nil {
		t.Fatalf("unread count: %v", err)
	}
	var body struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Data.Count != 0 {
		t.Fatalf("expected unread count 0, got %d", body.Data.Count)
	}
}
