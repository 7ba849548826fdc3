package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	stdsync "sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jmadeiros/commonshub/backend/internal/models"
	"github.com/jmadeiros/commonshub/backend/internal/realtime"
	"github.com/jmadeiros/commonshub/backend/internal/repositories"
)

// --- test doubles ---

type mockPostRepo struct {
	mu               stdsync.Mutex
	posts            map[string]models.Post
	listCalls        int
	adjustErr        error
	commentAdjustErr error
	likeAdjusts      int
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{posts: make(map[string]models.Post)}
}

func (m *mockPostRepo) seed(post models.Post) string {
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ID.Hex()] = post
	return post.ID.Hex()
}

func (m *mockPostRepo) Create(_ context.Context, post *models.Post) error {
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	post.CreatedAt = time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ID.Hex()] = *post
	return nil
}

func (m *mockPostRepo) GetByID(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &post, nil
}

func (m *mockPostRepo) ListFeed(_ context.Context, orgID string, limit, _ int64) ([]models.FeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []models.FeedItem
	for _, post := range m.posts {
		if post.OrgID == orgID {
			out = append(out, post.ToFeedItem())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockPostRepo) ListByCategory(ctx context.Context, orgID, category string, limit, offset int64) ([]models.FeedItem, error) {
	items, err := m.ListFeed(ctx, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	var out []models.FeedItem
	for _, item := range items {
		if item.Category == category {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockPostRepo) Update(_ context.Context, id string, req *models.UpdatePostRequest) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if req.Content != "" {
		post.Content = req.Content
	}
	if req.Category != "" {
		post.Category = req.Category
	}
	post.UpdatedAt = time.Now()
	m.posts[id] = post
	return &post, nil
}

func (m *mockPostRepo) SetPinned(_ context.Context, id string, pinned bool, actorID string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	post.IsPinned = pinned
	if pinned {
		now := time.Now()
		post.PinnedAt = &now
		post.PinnedBy = actorID
	} else {
		post.PinnedAt = nil
		post.PinnedBy = ""
	}
	m.posts[id] = post
	return &post, nil
}

func (m *mockPostRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *mockPostRepo) AdjustLikeCount(_ context.Context, id string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adjustErr != nil {
		return m.adjustErr
	}
	m.likeAdjusts++
	post, ok := m.posts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	post.LikeCount += delta
	if post.LikeCount < 0 {
		post.LikeCount = 0
	}
	m.posts[id] = post
	return nil
}

func (m *mockPostRepo) AdjustCommentCount(_ context.Context, id string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commentAdjustErr != nil {
		return m.commentAdjustErr
	}
	post, ok := m.posts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	post.CommentCount += delta
	if post.CommentCount < 0 {
		post.CommentCount = 0
	}
	m.posts[id] = post
	return nil
}

type mockCommentRepo struct {
	mu        stdsync.Mutex
	comments  map[string]models.Comment
	createErr error
}

func newMockCommentRepo() *mockCommentRepo {
	return &mockCommentRepo{comments: make(map[string]models.Comment)}
}

func (m *mockCommentRepo) Create(_ context.Context, _ string, comment *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if comment.ID == "" {
		comment.ID = primitive.NewObjectID().Hex()
	}
	m.comments[comment.ID] = *comment
	return nil
}

func (m *mockCommentRepo) GetByID(_ context.Context, id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment, ok := m.comments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &comment, nil
}

func (m *mockCommentRepo) ListByPost(_ context.Context, postID string, _ int) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCommentRepo) Delete(_ context.Context, _ string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.comments, id)
	return nil
}

func (m *mockCommentRepo) CountByPost(_ context.Context, postID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, c := range m.comments {
		if c.PostID == postID {
			count++
		}
	}
	return count, nil
}

type reactionKey struct {
	postID, userID, reactionType string
}

type mockReactionRepo struct {
	mu        stdsync.Mutex
	reactions map[reactionKey]struct{}
	createErr error
}

func newMockReactionRepo() *mockReactionRepo {
	return &mockReactionRepo{reactions: make(map[reactionKey]struct{})}
}

func (m *mockReactionRepo) Create(_ context.Context, _ string, reaction *models.Reaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	key := reactionKey{reaction.PostID, reaction.UserID, reaction.Type}
	if _, ok := m.reactions[key]; ok {
		return repositories.ErrAlreadyExists
	}
	m.reactions[key] = struct{}{}
	return nil
}

func (m *mockReactionRepo) Delete(_ context.Context, _ string, postID, userID, reactionType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := reactionKey{postID, userID, reactionType}
	if _, ok := m.reactions[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.reactions, key)
	return nil
}

func (m *mockReactionRepo) HasReacted(_ context.Context, postID, userID, reactionType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.reactions[reactionKey{postID, userID, reactionType}]
	return ok, nil
}

func (m *mockReactionRepo) CountByPost(_ context.Context, postID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for key := range m.reactions {
		if key.postID == postID {
			count++
		}
	}
	return count, nil
}

func newTestFeedSync(posts *mockPostRepo, comments *mockCommentRepo, reactions *mockReactionRepo) (*FeedSync, *realtime.Broker) {
	broker := realtime.NewBroker(realtime.NewHub(), nil, allowAllVerifier{})
	s := NewFeedSync(posts, comments, reactions, broker, nil, Options{
		SettleDelay:  20 * time.Millisecond,
		CacheIdleTTL: time.Minute,
	})
	return s, broker
}

func feedPost(orgID string, likeCount, commentCount int, age time.Duration) models.Post {
	return models.Post{
		ID:           primitive.NewObjectID(),
		OrgID:        orgID,
		AuthorID:     "author-1",
		Content:      "hello",
		Category:     models.CategoryGeneral,
		LikeCount:    likeCount,
		CommentCount: commentCount,
		CreatedAt:    time.Now().Add(-age),
	}
}

func findItem(t *testing.T, items []models.FeedItem, id string) models.FeedItem {
	t.Helper()
	for _, item := range items {
		if item.ID == id {
			return item
		}
	}
	t.Fatalf("post %s not in feed", id)
	return models.FeedItem{}
}

// --- tests ---

func TestReactBumpsAndPersists(t *testing.T) {
	posts := newMockPostRepo()
	postID := posts.seed(feedPost("org-1", 2, 0, time.Minute))
	s, _ := newTestFeedSync(posts, newMockCommentRepo(), newMockReactionRepo())
	defer s.Close()

	if _, err := s.List(context.Background(), "org-1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := s.React(context.Background(), "org-1", postID, "u1", "like"); err != nil {
		t.Fatalf("react: %v", err)
	}

	items, _ := s.List(context.Background(), "org-1")
	if got := findItem(t, items, postID).LikeCount; got != 3 {
		t.Fatalf("expected like count 3, got %d", got)
	}

	// Reconcile refetch keeps the count at server truth.
	waitFor(t, func() bool {
		posts.mu.Lock()
		defer posts.mu.Unlock()
		return posts.listCalls > 1
	}, "reconcile refetch never ran")
	items, _ = s.List(context.Background(), "org-1")
	if got := findItem(t, items, postID).LikeCount; got != 3 {
		t.Fatalf("expected like count 3 after reconcile, got %d", got)
	}
}

func TestReactRollsBackOnRemoteFailure(t *testing.T) {
	posts := newMockPostRepo()
	postID := posts.seed(feedPost("org-1", 2, 0, time.Minute))
	reactions := newMockReactionRepo()
	reactions.createErr = errors.New("remote unavailable")
	s, _ := newTestFeedSync(posts, newMockCommentRepo(), reactions)
	defer s.Close()

	if _, err := s.List(context.Background(), "org-1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := s.React(context.Background(), "org-1", postID, "u1", "like"); err == nil {
		t.Fatal("expected the remote failure to surface")
	}

	items, _ := s.List(context.Background(), "org-1")
	if got := findItem(t, items, postID).LikeCount; got != 2 {
		t.Fatalf("expected rollback to like count 2, got %d", got)
	}
	posts.mu.Lock()
	adjusts := posts.likeAdjusts
	posts.mu.Unlock()
	if adjusts != 0 {
		t.Fatal("counter adjusted despite failed reaction write")
	}
}

func TestReactUndoesRowWhenCountWriteFails(t *testing.T) {
	posts := newMockPostRepo()
	postID := posts.seed(feedPost("org-1", 2, 0, time.Minute))
	posts.adjustErr = errors.New("count write unavailable")
	reactions := newMockReactionRepo()
	s, _ := newTestFeedSync(posts, newMockCommentRepo(), reactions)
	defer s.Close()

	if _, err := s.List(context.Background(), "org-1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := s.React(context.Background(), "org-1", postID, "u1", "like"); err == nil {
		t.Fatal("expected the count failure to surface")
	}

	// The reaction row must not survive the failed count write, or the next
	// toggle would remove a reaction the stored count never included.
	hasReacted, _ := reactions.HasReacted(context.Background(), postID, "u1", "like")
	if hasReacted {
		t.Fatal("reaction row persisted after failed count write")
	}
	items, _ := s.List(context.Background(), "org-1")
	if got := findItem(t, items, postID).LikeCount; got != 2 {
		t.Fatalf("expected rollback to like count 2, got %d", got)
	}
}

func TestDeleteCommentRestoresRowWhenCountWriteFails(t *testing.T) {
	posts := newMockPostRepo()
	postID := posts.seed(feedPost("org-1", 0, 1, time.Minute))
	comments := newMockCommentRepo()
	if err := comments.Create(context.Background(), "org-1", &models.Comment{ID: "c1", PostID: postID, AuthorID: "u1", Content: "hi"}); err != nil {
		t.Fatalf("seed comment: %v", err)
	}
	posts.commentAdjustErr = errors.New("count write unavailable")
	s, _ := newTestFeedSync(posts, comments, newMockReactionRepo())
	defer s.Close()

	if _, err := s.List(context.Background(), "org-1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := s.DeleteComment(context.Background(), "org-1", postID, "c1"); err == nil {
		t.Fatal("expected the count failure to surface")
	}

	if _, err := comments.GetByID(context.Background(), "c1"); err != nil {
		t.Fatal("comment row not restored after failed count write")
	}
	items, _ := s.List(context.Background(), "org-1")
	if got := findItem(t, items, postID).CommentCount; got != 1 {
		t.Fatalf("expected rollback to comment count 1, got %d", got)
	}
}

func TestUnreactFloorsAtZero(t *testing.T) {
	posts := newMockPostRepo()
	postID := posts.seed(feedPost("org-1", 0, 0, time.Minute))
	reactions := newMockReactionRepo()
	reactions.reactions[reactionKey{postID, "u1", "like"}] = struct{}{}
	s, _ := newTestFeedSync(posts, newMockCommentRepo(), reactions)
	defer s.Close()

	if _, err := s.List(context.Background(), "org-1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := s.Unreact(context.Background(), "org-1", postID, "u1", "like"); err != nil {
		t.Fatalf("unreact: %v", err)
	}

	items, _ := s.List(context.Background(), "org-1")
	if got := findItem(t, items, postID).LikeCount; got != 0 {
		t.Fatalf("like count went below floor: %d", got)
	}
}

func TestCommentEventsAdjustCountWithFloor(t *testing.T) {
	posts := newMockPostRepo()
	postID := posts.seed(feedPost("org-1", 0, 1, time.Minute))
	s, _ := newTestFeedSync(posts, newMockCommentRepo(), newMockReactionRepo())
	defer s.Close()

	if _, err := s.List(context.Background(), "org-1"); err != nil {
		t.Fatalf("list: %v", err)
	}

	row, _ := json.Marshal(models.Comment{ID: "c1", PostID: postID})
	deleteEvent := realtime.ChangeEvent{
		Op:    realtime.OpDelete,
		Table: realtime.TableComments,
		Scope: "org-1",
		Row:   row,
	}

	// Two deletes against a count of one: the second clamps at zero.
	s.apply("org-1", deleteEvent)
	s.apply("org-1", deleteEvent)
	items, _ := s.List(context.Background(), "org-1")
	if got := findItem(t, items, postID).CommentCount; got != 0 {
		t.Fatalf("comment count went below floor: %d", got)
	}

	insertEvent := deleteEvent
	insertEvent.Op = realtime.OpInsert
	s.apply("org-1", insertEvent)
	items, _ = s.List(context.Background(), "org-1")
	if got := findItem(t, items, postID).CommentCount; got != 1 {
		t.Fatalf("expected comment count 1 after insert hint, got %d", got)
	}
}

func TestFeedScopeIsolation(t *testing.T) {
	posts := newMockPostRepo()
	org1Post := posts.seed(feedPost("org-1", 0, 0, time.Minute))
	posts.seed(feedPost("org-2", 0, 0, time.Minute))
	s, _ := newTestFeedSync(posts, newMockCommentRepo(), newMockReactionRepo())
	defer s.Close()

	if _, err := s.List(context.Background(), "org-1"); err != nil {
		t.Fatalf("list org-1: %v", err)
	}
	if _, err := s.List(context.Background(), "org-2"); err != nil {
		t.Fatalf("list org-2: %v", err)
	}

	// An org-2 insert must not leak into org-1's cache, even when the
	// listener goroutine for org-1 sees the event.
	stray := feedPost("org-2", 0, 0, 0)
	row, _ := json.Marshal(stray.ToFeedItem())
	s.apply("org-1", realtime.ChangeEvent{
		Op:    realtime.OpInsert,
		Table: realtime.TablePosts,
		Scope: "org-2",
		Row:   row,
	})

	org1Items, _ := s.List(context.Background(), "org-1")
	if len(org1Items) != 1 || org1Items[0].ID != org1Post {
		t.Fatalf("org-1 cache polluted: %+v", org1Items)
	}
}

func TestCreatePostPrependsAndDeduplicates(t *testing.T) {
	posts := newMockPostRepo()
	posts.seed(feedPost("org-1", 0, 0, time.Hour))
	s, _ := newTestFeedSync(posts, newMockCommentRepo(), newMockReactionRepo())
	defer s.Close()

	if _, err := s.List(context.Background(), "org-1"); err != nil {
		t.Fatalf("list: %v", err)
	}

	post := &models.Post{OrgID: "org-1", AuthorID: "u1", Content: "fresh", Category: models.CategoryGeneral}
	item, err := s.CreatePost(context.Background(), post)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	items, _ := s.List(context.Background(), "org-1")
	if len(items) != 2 || items[0].ID != item.ID {
		t.Fatalf("new post not prepended: %+v", items)
	}

	// The echo of our own insert arrives over the push channel.
	row, _ := json.Marshal(item)
	s.apply("org-1", realtime.ChangeEvent{
		Op:    realtime.OpInsert,
		Table: realtime.TablePosts,
		Scope: "org-1",
		Row:   row,
	})
	items, _ = s.List(context.Background(), "org-1")
	if len(items) != 2 {
		t.Fatalf("insert echo duplicated the post: %d items", len(items))
	}
}

func TestEditPostKeepsCachedCounters(t *testing.T) {
	posts := newMockPostRepo()
	postID := posts.seed(feedPost("org-1", 0, 0, time.Minute))
	s, _ := newTestFeedSync(posts, newMockCommentRepo(), newMockReactionRepo())
	defer s.Close()

	if _, err := s.List(context.Background(), "org-1"); err != nil {
		t.Fatalf("list: %v", err)
	}

	// Counter hints already applied locally; the store row still says zero.
	row, _ := json.Marshal(models.Comment{ID: "c1", PostID: postID})
	s.apply("org-1", realtime.ChangeEvent{
		Op:    realtime.OpInsert,
		Table: realtime.TableComments,
		Scope: "org-1",
		Row:   row,
	})

	if _, err := s.EditPost(context.Background(), "org-1", postID, &models.UpdatePostRequest{Content: "edited"}); err != nil {
		t.Fatalf("edit post: %v", err)
	}

	items, _ := s.List(context.Background(), "org-1")
	item := findItem(t, items, postID)
	if item.Content != "edited" {
		t.Fatalf("content not updated: %q", item.Content)
	}
	if item.CommentCount != 1 {
		t.Fatalf("cached counter hint lost on edit: %d", item.CommentCount)
	}
}

func TestPinAndDeleteUpdateCache(t *testing.T) {
	posts := newMockPostRepo()
	pinned := posts.seed(feedPost("org-1", 0, 0, time.Hour))
	other := posts.seed(feedPost("org-1", 0, 0, time.Minute))
	s, _ := newTestFeedSync(posts, newMockCommentRepo(), newMockReactionRepo())
	defer s.Close()

	if _, err := s.List(context.Background(), "org-1"); err != nil {
		t.Fatalf("list: %v", err)
	}

	item, err := s.PinPost(context.Background(), "org-1", pinned, true, "admin-1")
	if err != nil {
		t.Fatalf("pin post: %v", err)
	}
	if !item.IsPinned {
		t.Fatal("returned item not pinned")
	}
	items, _ := s.List(context.Background(), "org-1")
	if !findItem(t, items, pinned).IsPinned {
		t.Fatal("cached item not pinned")
	}

	if err := s.DeletePost(context.Background(), "org-1", other); err != nil {
		t.Fatalf("delete post: %v", err)
	}
	items, _ = s.List(context.Background(), "org-1")
	if len(items) != 1 || items[0].ID != pinned {
		t.Fatalf("unexpected feed after delete: %+v", items)
	}
}

func TestFeedListenerFoldsPostEvents(t *testing.T) {
	posts := newMockPostRepo()
	posts.seed(feedPost("org-1", 0, 0, time.Hour))
	s, broker := newTestFeedSync(posts, newMockCommentRepo(), newMockReactionRepo())
	defer s.Close()

	if _, err := s.List(context.Background(), "org-1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	listener, err := s.Listen(context.Background(), "org-1", "tok")
	if err != nil || listener == nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	incoming := feedPost("org-1", 0, 0, 0)
	row, _ := json.Marshal(incoming.ToFeedItem())
	broker.Publish(realtime.ChangeEvent{
		Op:    realtime.OpInsert,
		Table: realtime.TablePosts,
		Scope: "org-1",
		Row:   row,
	})

	waitFor(t, func() bool {
		items, _ := s.List(context.Background(), "org-1")
		return len(items) == 2
	}, "post insert event never reached the cache")

	items, _ := s.List(context.Background(), "org-1")
	if items[0].ID != incoming.ID.Hex() {
		t.Fatalf("expected pushed post at head, got %s", items[0].ID)
	}
}
