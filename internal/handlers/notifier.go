package handlers

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/repositories"
)

// notifier fans out notifications for social actions. Fan-out is best
// effort: a failed insert is logged and never fails the triggering request,
// and actors are not notified about their own content.
type notifier struct {
	notifications  repositories.NotificationRepository
	userRepository repositories.UserRepository
}

func newNotifier(notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository) *notifier {
	return &notifier{notifications: notifRepo, userRepository: userRepo}
}

func (n *notifier) notify(ctx context.Context, recipientID, actorID, notifType, title, link string, payload map[string]any) {
	if recipientID == "" || recipientID == actorID {
		return
	}

	notification := &models.Notification{
		ID:      uuid.NewString(),
		UserID:  recipientID,
		ActorID: &actorID,
		Type:    notifType,
		Title:   title,
		Link:    link,
		Payload: payload,
	}
	if err := n.notifications.Create(ctx, notification); err != nil {
		log.Printf("notifier: failed to create %s notification for %s: %v", notifType, recipientID, err)
	}
}

// actorName resolves the actor's display name for notification titles,
// falling back to a neutral label when the lookup fails.
func (n *notifier) actorName(ctx context.Context, actorID string) string {
	user, err := n.userRepository.GetByID(ctx, actorID)
	if err != nil || user.DisplayName == "" {
		return "Someone"
	}
	return user.DisplayName
}

func (n *notifier) postReaction(ctx context.Context, post *models.Post, actorID string) {
	title := n.actorName(ctx, actorID) + " liked your post"
	n.notify(ctx, post.AuthorID, actorID, models.NotificationReaction, title, "/posts/"+post.ID.Hex(), map[string]any{
		"post_id": post.ID.Hex(),
	})
}

func (n *notifier) postComment(ctx context.Context, post *models.Post, actorID string) {
	title := n.actorName(ctx, actorID) + " commented on your post"
	n.notify(ctx, post.AuthorID, actorID, models.NotificationComment, title, "/posts/"+post.ID.Hex(), map[string]any{
		"post_id": post.ID.Hex(),
	})
}

func (n *notifier) eventRSVP(ctx context.Context, event *models.Event, actorID, status string) {
	title := n.actorName(ctx, actorID) + " responded " + status + " to " + event.Title
	n.notify(ctx, event.CreatorID, actorID, models.NotificationRSVP, title, "/events/"+event.ID, map[string]any{
		"event_id": event.ID,
		"status":   status,
	})
}
