package sync

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/jmadeiros/commonshub/backend/internal/cache"
	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/realtime"
	"github.com/jmadeiros/commonshub/backend/internal/repositories"
	"github.com/jmadeiros/commonshub/backend/pkg/metrics"
)

const notificationEntity = "notifications"

// NotificationSync keeps each user's notification list synchronized: reads
// are served read-through from the cache, mark-read mutations are optimistic
// with rollback, and a per-user subscription listener folds push events in.
type NotificationSync struct {
	repo    repositories.NotificationRepository
	broker  *realtime.Broker
	cache   *cache.Cache[models.Notification]
	metrics *metrics.Collector
	opts    Options
}

// NewNotificationSync constructs the engine. collector may be nil.
func NewNotificationSync(repo repositories.NotificationRepository, broker *realtime.Broker, collector *metrics.Collector, opts Options) *NotificationSync {
	opts = opts.withDefaults()
	return &NotificationSync{
		repo:    repo,
		broker:  broker,
		cache:   cache.New[models.Notification](opts.CacheIdleTTL),
		metrics: collector,
		opts:    opts,
	}
}

// Close releases the cache janitor.
func (s *NotificationSync) Close() {
	s.cache.Close()
}

// List returns the user's notifications newest first, from the cache when
// warm, from the store otherwise.
func (s *NotificationSync) List(ctx context.Context, userID string) ([]models.Notification, error) {
	if cached, ok := s.cache.Get(userID); ok {
		s.metrics.RecordCacheHit(notificationEntity)
		return cached, nil
	}
	s.metrics.RecordCacheMiss(notificationEntity)

	notifications, err := s.repo.ListByUser(ctx, userID, repositories.NotificationListOptions{Limit: s.opts.FetchLimit})
	if err != nil {
		return nil, err
	}
	s.cache.Set(userID, notifications)
	return notifications, nil
}

// UnreadCount derives the unread count from the user's (possibly freshly
// fetched) notification list.
func (s *NotificationSync) UnreadCount(ctx context.Context, userID string) (int, error) {
	notifications, err := s.List(ctx, userID)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range notifications {
		if !notifications[i].Read {
			count++
		}
	}
	return count, nil
}

// Refresh replaces the user's cache entry with server truth.
func (s *NotificationSync) Refresh(ctx context.Context, userID string) error {
	notifications, err := s.repo.ListByUser(ctx, userID, repositories.NotificationListOptions{Limit: s.opts.FetchLimit})
	if err != nil {
		return err
	}
	s.cache.Set(userID, notifications)
	return nil
}

// MarkRead marks the given notifications as read with the optimistic
// contract: the cache is patched immediately, rolled back to the pre-call
// snapshot if the remote update fails, and reconciled against server truth
// after the settle delay if it succeeds. Marking an already-read
// notification again is a no-op on the flag.
func (s *NotificationSync) MarkRead(ctx context.Context, userID string, ids []string) error {
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	return s.mutate(ctx, userID,
		func(old []models.Notification) []models.Notification {
			return markRead(old, func(n *models.Notification) bool {
				_, ok := idSet[n.ID]
				return ok
			})
		},
		func(ctx context.Context) error {
			return s.repo.MarkRead(ctx, userID, ids)
		},
	)
}

// MarkAllRead is the bulk variant of MarkRead over the whole scope.
func (s *NotificationSync) MarkAllRead(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID,
		func(old []models.Notification) []models.Notification {
			return markRead(old, func(*models.Notification) bool { return true })
		},
		func(ctx context.Context) error {
			return s.repo.MarkAllRead(ctx, userID)
		},
	)
}

// mutate runs one coordinator invocation: snapshot, optimistic patch, remote
// call, then rollback or delayed reconcile. Only the Pending, Committed and
// Rolled-back states are observable from outside.
func (s *NotificationSync) mutate(ctx context.Context, userID string, patch func([]models.Notification) []models.Notification, remote func(context.Context) error) error {
	snapshot, had := s.cache.Get(userID)
	s.cache.Patch(userID, patch)

	if err := remote(ctx); err != nil {
		if had {
			s.cache.Set(userID, snapshot)
		}
		s.metrics.RecordRollback(notificationEntity)
		return err
	}

	s.scheduleReconcile(userID)
	return nil
}

// scheduleReconcile refetches server truth after the settle delay. A failed
// refetch is logged and the cache keeps its last state: the optimistic patch
// already reflects the user's intent, so partial reconciliation beats
// reverting a successful mutation.
func (s *NotificationSync) scheduleReconcile(userID string) {
	time.AfterFunc(s.opts.SettleDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		s.metrics.RecordReconcile(notificationEntity)
		if err := s.Refresh(ctx, userID); err != nil {
			log.Printf("notifications: reconcile refetch for %s failed: %v", userID, err)
		}
	})
}

func markRead(old []models.Notification, match func(*models.Notification) bool) []models.Notification {
	now := time.Now()
	out := make([]models.Notification, len(old))
	copy(out, old)
	for i := range out {
		if !out[i].Read && match(&out[i]) {
			out[i].Read = true
			out[i].ReadAt = &now
		}
	}
	return out
}

// Listen opens the user's push channel and starts folding events into the
// cache. With no session token the listener does not open and (nil, nil) is
// returned: signed-out means nothing to show, not an error. The caller owns
// the returned listener and must Close it when the consuming context goes
// away; it is also responsible for not opening a second listener for the
// same scope.
func (s *NotificationSync) Listen(ctx context.Context, userID, token string) (*Listener, error) {
	sub, err := s.broker.Subscribe(ctx, userID, token)
	if err != nil {
		if errors.Is(err, realtime.ErrNoSession) {
			log.Printf("notifications: no session for %s, skipping subscription", userID)
			return nil, nil
		}
		return nil, err
	}

	l := newListener(sub)
	go func() {
		defer close(l.done)
		defer close(l.events)
		for ev := range sub.Events() {
			s.apply(userID, ev)
			l.forward(ev)
		}
	}()
	return l, nil
}

// apply folds one push event into the user's cache entry.
func (s *NotificationSync) apply(userID string, ev realtime.ChangeEvent) {
	if ev.Table != realtime.TableNotifications {
		return
	}

	var incoming models.Notification
	if err := json.Unmarshal(ev.Row, &incoming); err != nil {
		log.Printf("notifications: reject undecodable %s event: %v", ev.Op, err)
		return
	}
	s.metrics.RecordRealtimeEvent(ev.Table, string(ev.Op))

	switch ev.Op {
	case realtime.OpInsert:
		if incoming.UserID != userID {
			return
		}
		s.cache.Patch(userID, func(old []models.Notification) []models.Notification {
			for i := range old {
				if old[i].ID == incoming.ID {
					return old // already present, e.g. from an optimistic insert
				}
			}
			out := make([]models.Notification, 0, len(old)+1)
			out = append(out, incoming)
			return append(out, old...)
		})

	case realtime.OpUpdate:
		s.cache.Patch(userID, func(old []models.Notification) []models.Notification {
			for i := range old {
				if old[i].ID != incoming.ID {
					continue
				}
				if old[i].Read == incoming.Read {
					// Already consistent; skipping avoids flicker when the
					// coordinator's reconcile races the echo of its own write.
					return old
				}
				out := make([]models.Notification, len(old))
				copy(out, old)
				out[i] = incoming
				return out
			}
			return old
		})

	case realtime.OpDelete:
		s.cache.Patch(userID, func(old []models.Notification) []models.Notification {
			out := old[:0:0]
			for i := range old {
				if old[i].ID != incoming.ID {
					out = append(out, old[i])
				}
			}
			return out
		})
	}
}

// Listener is one open subscription; Close tears the channel down and waits
// for the drain goroutine to detach. Events already folded into the cache
// are teed onto Events() so stream endpoints can forward them; a consumer
// that falls behind misses events rather than stalling the fold.
type Listener struct {
	sub    *realtime.Subscription
	events chan realtime.ChangeEvent
	done   chan struct{}
}

func newListener(sub *realtime.Subscription) *Listener {
	return &Listener{
		sub:    sub,
		events: make(chan realtime.ChangeEvent, 16),
		done:   make(chan struct{}),
	}
}

// Events returns the folded event stream. The channel closes when the
// subscription does.
func (l *Listener) Events() <-chan realtime.ChangeEvent {
	return l.events
}

func (l *Listener) forward(ev realtime.ChangeEvent) {
	select {
	case l.events <- ev:
	default:
	}
}

// SetAuth refreshes the subscription's bearer credential after a session
// token rotation.
func (l *Listener) SetAuth(ctx context.Context, token string) error {
	return l.sub.SetAuth(ctx, token)
}

// Close closes the push channel and blocks until the listener goroutine has
// exited.
func (l *Listener) Close() {
	l.sub.Close()
	<-l.done
}
