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

const feedEntity = "feed"

// FeedSync keeps each org's feed synchronized. Post create/edit/pin/delete
// apply the returned authoritative row; reactions and comments patch the
// parent's derived counters optimistically and reconcile later.
type FeedSync struct {
	posts     repositories.PostRepository
	comments  repositories.CommentRepository
	reactions repositories.ReactionRepository
	broker    *realtime.Broker
	cache     *cache.Cache[models.FeedItem]
	metrics   *metrics.Collector
	opts      Options
}

// NewFeedSync constructs the engine. collector may be nil.
func NewFeedSync(
	posts repositories.PostRepository,
	comments repositories.CommentRepository,
	reactions repositories.ReactionRepository,
	broker *realtime.Broker,
	collector *metrics.Collector,
	opts Options,
) *FeedSync {
	opts = opts.withDefaults()
	return &FeedSync{
		posts:     posts,
		comments:  comments,
		reactions: reactions,
		broker:    broker,
		cache:     cache.New[models.FeedItem](opts.CacheIdleTTL),
		metrics:   collector,
		opts:      opts,
	}
}

// Close releases the cache janitor.
func (s *FeedSync) Close() {
	s.cache.Close()
}

// List returns the org's feed, pinned posts first then newest first, from
// the cache when warm.
func (s *FeedSync) List(ctx context.Context, orgID string) ([]models.FeedItem, error) {
	if cached, ok := s.cache.Get(orgID); ok {
		s.metrics.RecordCacheHit(feedEntity)
		return cached, nil
	}
	s.metrics.RecordCacheMiss(feedEntity)

	items, err := s.posts.ListFeed(ctx, orgID, int64(s.opts.FetchLimit), 0)
	if err != nil {
		return nil, err
	}
	s.cache.Set(orgID, items)
	return items, nil
}

// Refresh replaces the org's cache entry with server truth.
func (s *FeedSync) Refresh(ctx context.Context, orgID string) error {
	items, err := s.posts.ListFeed(ctx, orgID, int64(s.opts.FetchLimit), 0)
	if err != nil {
		return err
	}
	s.cache.Set(orgID, items)
	return nil
}

// CreatePost stores a new post and prepends it to the cached feed. The
// delayed reconcile then reorders against server truth (pinned-first) and
// picks up trigger side effects.
func (s *FeedSync) CreatePost(ctx context.Context, post *models.Post) (models.FeedItem, error) {
	if err := s.posts.Create(ctx, post); err != nil {
		return models.FeedItem{}, err
	}

	item := post.ToFeedItem()
	s.cache.Patch(post.OrgID, func(old []models.FeedItem) []models.FeedItem {
		for i := range old {
			if old[i].ID == item.ID {
				return old
			}
		}
		out := make([]models.FeedItem, 0, len(old)+1)
		out = append(out, item)
		return append(out, old...)
	})
	s.scheduleReconcile(post.OrgID)
	return item, nil
}

// EditPost applies a content/category edit and folds the authoritative row
// into the cache. The store returns that row directly, so unlike CreatePost
// there is no trigger side effect left for a settle-delay refetch to pick up.
func (s *FeedSync) EditPost(ctx context.Context, orgID, postID string, req *models.UpdatePostRequest) (models.FeedItem, error) {
	post, err := s.posts.Update(ctx, postID, req)
	if err != nil {
		return models.FeedItem{}, err
	}

	item := post.ToFeedItem()
	s.applyPostUpdate(orgID, item)
	return item, nil
}

// PinPost toggles a post's pin state and folds the authoritative row into
// the cache. Same contract as EditPost: the returned row is already server
// truth, so no settle-delay refetch is scheduled.
func (s *FeedSync) PinPost(ctx context.Context, orgID, postID string, pinned bool, actorID string) (models.FeedItem, error) {
	post, err := s.posts.SetPinned(ctx, postID, pinned, actorID)
	if err != nil {
		return models.FeedItem{}, err
	}

	item := post.ToFeedItem()
	s.applyPostUpdate(orgID, item)
	return item, nil
}

// DeletePost removes a post and filters it out of the cached feed. The
// delete ack is final; there is no authoritative state left to reconcile, so
// no settle-delay refetch is scheduled.
func (s *FeedSync) DeletePost(ctx context.Context, orgID, postID string) error {
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}

	s.cache.Patch(orgID, func(old []models.FeedItem) []models.FeedItem {
		return removeItem(old, postID)
	})
	return nil
}

// React records the user's reaction with the optimistic contract: the cached
// like count is bumped immediately and rolled back if the remote writes fail.
// The remote side is two writes (reaction row, then stored count); a failed
// count write undoes the row so the stored aggregate and the child table
// cannot drift apart.
func (s *FeedSync) React(ctx context.Context, orgID, postID, userID, reactionType string) error {
	return s.mutate(ctx, orgID,
		func(old []models.FeedItem) []models.FeedItem {
			return adjustCount(old, postID, func(item *models.FeedItem) { item.LikeCount++ })
		},
		func(ctx context.Context) error {
			reaction := &models.Reaction{PostID: postID, UserID: userID, Type: reactionType}
			if err := s.reactions.Create(ctx, orgID, reaction); err != nil {
				return err
			}
			if err := s.posts.AdjustLikeCount(ctx, postID, 1); err != nil {
				if uerr := s.reactions.Delete(ctx, orgID, postID, userID, reactionType); uerr != nil {
					log.Printf("feed: undo reaction on %s after count failure also failed: %v", postID, uerr)
				}
				return err
			}
			return nil
		},
	)
}

// Unreact removes the user's reaction, decrementing the cached like count
// with a floor at zero.
func (s *FeedSync) Unreact(ctx context.Context, orgID, postID, userID, reactionType string) error {
	return s.mutate(ctx, orgID,
		func(old []models.FeedItem) []models.FeedItem {
			return adjustCount(old, postID, func(item *models.FeedItem) {
				if item.LikeCount > 0 {
					item.LikeCount--
				}
			})
		},
		func(ctx context.Context) error {
			if err := s.reactions.Delete(ctx, orgID, postID, userID, reactionType); err != nil {
				return err
			}
			if err := s.posts.AdjustLikeCount(ctx, postID, -1); err != nil {
				restore := &models.Reaction{PostID: postID, UserID: userID, Type: reactionType}
				if rerr := s.reactions.Create(ctx, orgID, restore); rerr != nil {
					log.Printf("feed: restore reaction on %s after count failure also failed: %v", postID, rerr)
				}
				return err
			}
			return nil
		},
	)
}

// AddComment stores a comment and bumps the parent's cached comment count
// optimistically.
func (s *FeedSync) AddComment(ctx context.Context, orgID string, comment *models.Comment) error {
	return s.mutate(ctx, orgID,
		func(old []models.FeedItem) []models.FeedItem {
			return adjustCount(old, comment.PostID, func(item *models.FeedItem) { item.CommentCount++ })
		},
		func(ctx context.Context) error {
			if err := s.comments.Create(ctx, orgID, comment); err != nil {
				return err
			}
			if err := s.posts.AdjustCommentCount(ctx, comment.PostID, 1); err != nil {
				if uerr := s.comments.Delete(ctx, orgID, comment.ID); uerr != nil {
					log.Printf("feed: undo comment %s after count failure also failed: %v", comment.ID, uerr)
				}
				return err
			}
			return nil
		},
	)
}

// DeleteComment removes a comment, decrementing the parent's cached comment
// count with a floor at zero.
func (s *FeedSync) DeleteComment(ctx context.Context, orgID, postID, commentID string) error {
	return s.mutate(ctx, orgID,
		func(old []models.FeedItem) []models.FeedItem {
			return adjustCount(old, postID, func(item *models.FeedItem) {
				if item.CommentCount > 0 {
					item.CommentCount--
				}
			})
		},
		func(ctx context.Context) error {
			comment, err := s.comments.GetByID(ctx, commentID)
			if err != nil {
				return err
			}
			if err := s.comments.Delete(ctx, orgID, commentID); err != nil {
				return err
			}
			if err := s.posts.AdjustCommentCount(ctx, postID, -1); err != nil {
				if rerr := s.comments.Create(ctx, orgID, comment); rerr != nil {
					log.Printf("feed: restore comment %s after count failure also failed: %v", commentID, rerr)
				}
				return err
			}
			return nil
		},
	)
}

func (s *FeedSync) mutate(ctx context.Context, orgID string, patch func([]models.FeedItem) []models.FeedItem, remote func(context.Context) error) error {
	snapshot, had := s.cache.Get(orgID)
	s.cache.Patch(orgID, patch)

	if err := remote(ctx); err != nil {
		if had {
			s.cache.Set(orgID, snapshot)
		}
		s.metrics.RecordRollback(feedEntity)
		return err
	}

	s.scheduleReconcile(orgID)
	return nil
}

func (s *FeedSync) scheduleReconcile(orgID string) {
	time.AfterFunc(s.opts.SettleDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		s.metrics.RecordReconcile(feedEntity)
		if err := s.Refresh(ctx, orgID); err != nil {
			log.Printf("feed: reconcile refetch for %s failed: %v", orgID, err)
		}
	})
}

// Listen opens the org's push channel and starts folding events into the
// cache. Same session contract as NotificationSync.Listen.
func (s *FeedSync) Listen(ctx context.Context, orgID, token string) (*Listener, error) {
	sub, err := s.broker.Subscribe(ctx, orgID, token)
	if err != nil {
		if errors.Is(err, realtime.ErrNoSession) {
			log.Printf("feed: no session for %s, skipping subscription", orgID)
			return nil, nil
		}
		return nil, err
	}

	l := newListener(sub)
	go func() {
		defer close(l.done)
		defer close(l.events)
		for ev := range sub.Events() {
			s.apply(orgID, ev)
			l.forward(ev)
		}
	}()
	return l, nil
}

// apply folds one push event into the org's cache entry.
func (s *FeedSync) apply(orgID string, ev realtime.ChangeEvent) {
	switch ev.Table {
	case realtime.TablePosts:
		s.applyPostEvent(orgID, ev)
	case realtime.TableComments:
		s.applyChildEvent(orgID, ev, func(item *models.FeedItem, delta int) {
			item.CommentCount += delta
			if item.CommentCount < 0 {
				item.CommentCount = 0
			}
		})
	case realtime.TableReactions:
		s.applyChildEvent(orgID, ev, func(item *models.FeedItem, delta int) {
			item.LikeCount += delta
			if item.LikeCount < 0 {
				item.LikeCount = 0
			}
		})
	}
}

func (s *FeedSync) applyPostEvent(orgID string, ev realtime.ChangeEvent) {
	var incoming models.FeedItem
	if err := json.Unmarshal(ev.Row, &incoming); err != nil {
		log.Printf("feed: reject undecodable post %s event: %v", ev.Op, err)
		return
	}
	if incoming.OrgID != orgID {
		return
	}
	s.metrics.RecordRealtimeEvent(ev.Table, string(ev.Op))

	switch ev.Op {
	case realtime.OpInsert:
		s.cache.Patch(orgID, func(old []models.FeedItem) []models.FeedItem {
			for i := range old {
				if old[i].ID == incoming.ID {
					return old // already present from a local create
				}
			}
			out := make([]models.FeedItem, 0, len(old)+1)
			out = append(out, incoming)
			return append(out, old...)
		})

	case realtime.OpUpdate:
		s.applyPostUpdate(orgID, incoming)

	case realtime.OpDelete:
		s.cache.Patch(orgID, func(old []models.FeedItem) []models.FeedItem {
			return removeItem(old, incoming.ID)
		})
	}
}

// applyPostUpdate merges the changed fields of an updated post onto the
// cached item. The cached derived counters are kept: an update row's counts
// can lag the hints already applied from child-table events.
func (s *FeedSync) applyPostUpdate(orgID string, incoming models.FeedItem) {
	s.cache.Patch(orgID, func(old []models.FeedItem) []models.FeedItem {
		for i := range old {
			if old[i].ID != incoming.ID {
				continue
			}
			out := make([]models.FeedItem, len(old))
			copy(out, old)
			merged := incoming
			merged.LikeCount = old[i].LikeCount
			merged.CommentCount = old[i].CommentCount
			out[i] = merged
			return out
		}
		return old
	})
}

// child event rows carry the parent post id; only the id is needed to place
// the counter hint.
type childRow struct {
	PostID string `json:"post_id"`
}

func (s *FeedSync) applyChildEvent(orgID string, ev realtime.ChangeEvent, adjust func(*models.FeedItem, int)) {
	var row childRow
	if err := json.Unmarshal(ev.Row, &row); err != nil || row.PostID == "" {
		log.Printf("feed: reject undecodable %s %s event: %v", ev.Table, ev.Op, err)
		return
	}

	var delta int
	switch ev.Op {
	case realtime.OpInsert:
		delta = 1
	case realtime.OpDelete:
		delta = -1
	default:
		return
	}
	s.metrics.RecordRealtimeEvent(ev.Table, string(ev.Op))

	s.cache.Patch(orgID, func(old []models.FeedItem) []models.FeedItem {
		return adjustCount(old, row.PostID, func(item *models.FeedItem) {
			adjust(item, delta)
		})
	})
}

func adjustCount(old []models.FeedItem, postID string, apply func(*models.FeedItem)) []models.FeedItem {
	for i := range old {
		if old[i].ID != postID {
			continue
		}
		out := make([]models.FeedItem, len(old))
		copy(out, old)
		apply(&out[i])
		return out
	}
	return old
}

func removeItem(old []models.FeedItem, postID string) []models.FeedItem {
	out := old[:0:0]
	for i := range old {
		if old[i].ID != postID {
			out = append(out, old[i])
		}
	}
	return out
}
