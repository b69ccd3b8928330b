package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFeedGateway struct {
	feed        []Post
	feedErr     error
	feedFilters []string

	swipes      []SwipeRecord
	swipeErr    error
	leftSwipes  []SwipeRecord
	leftErr     error
	inboxResult []ContributedPost
}

func (g *fakeFeedGateway) Feed(_ context.Context, _ int64, categories []string) ([]Post, error) {
	g.feedFilters = categories
	return g.feed, g.feedErr
}

func (g *fakeFeedGateway) RecordSwipe(_ context.Context, rec SwipeRecord) error {
	if g.swipeErr != nil {
		return g.swipeErr
	}
	g.swipes = append(g.swipes, rec)
	return nil
}

func (g *fakeFeedGateway) RecordLeftSwipe(_ context.Context, rec SwipeRecord) error {
	if g.leftErr != nil {
		return g.leftErr
	}
	g.leftSwipes = append(g.leftSwipes, rec)
	return nil
}

func (g *fakeFeedGateway) SwipedInbox(_ context.Context, _ int64) ([]ContributedPost, error) {
	return g.inboxResult, nil
}

func post(id int64, title, category string) Post {
	return Post{ID: id, AuthorID: bob.ID, Author: bob, Title: title, Category: category}
}

func loadedQueue(t *testing.T, posts []Post) (*FeedQueue, *fakeFeedGateway, *fakeChatGateway) {
	t.Helper()
	fg := &fakeFeedGateway{feed: posts}
	cg := &fakeChatGateway{}
	q := NewFeedQueue(fg, cg, nil, testLogger())
	require.NoError(t, q.Load(context.Background(), alice.ID))
	return q, fg, cg
}

func TestLoadResetsQueueState(t *testing.T) {
	q, fg, _ := loadedQueue(t, []Post{
		post(1, "one", "Go"),
		post(2, "two", "Rust"),
	})

	require.NoError(t, q.SwipeLeft(context.Background(), alice.ID))
	require.Len(t, q.Visible(), 1)

	fg.feed = []Post{post(1, "one", "Go"), post(3, "three", "Go")}
	require.NoError(t, q.Load(context.Background(), alice.ID))

	assert.Len(t, q.Visible(), 2, "exclusions must not survive a reload")
	assert.Equal(t, 0, q.Cursor())
	assert.Equal(t, []string{"Go"}, q.Categories())
}

func TestSwipeRightAdvancesAndWraps(t *testing.T) {
	q, fg, _ := loadedQueue(t, []Post{
		post(1, "one", "Go"),
		post(2, "two", "Go"),
	})

	require.NoError(t, q.SwipeRight(context.Background(), alice, alice.ID))
	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, int64(2), cur.ID)

	// Advancing past the last post wraps, so post one comes back around.
	require.NoError(t, q.SwipeRight(context.Background(), alice, alice.ID))
	cur, ok = q.Current()
	require.True(t, ok)
	assert.Equal(t, int64(1), cur.ID)

	require.Len(t, fg.swipes, 2)
	assert.Equal(t, DirectionRight, fg.swipes[0].Direction)
	assert.Equal(t, int64(1), fg.swipes[0].PostID)
	assert.Equal(t, int64(2), fg.swipes[1].PostID)
}

func TestSwipeRightRecordsContributionNewestFirst(t *testing.T) {
	q, _, _ := loadedQueue(t, []Post{
		post(1, "one", "Go"),
		post(2, "two", "Go"),
	})

	require.NoError(t, q.SwipeRight(context.Background(), alice, alice.ID))
	require.NoError(t, q.SwipeRight(context.Background(), alice, alice.ID))

	contributed := q.Contributed()
	require.Len(t, contributed, 2)
	assert.Equal(t, "two", contributed[0].Title)
	assert.Equal(t, "one", contributed[1].Title)
	assert.False(t, contributed[0].SwipedAt.IsZero())
}

func TestSwipeRightNotifiesAuthor(t *testing.T) {
	q, _, cg := loadedQueue(t, []Post{post(1, "one", "Go")})

	require.NoError(t, q.SwipeRight(context.Background(), alice, alice.ID))

	require.Len(t, cg.sendCalls, 1)
	assert.Equal(t, alice, cg.sendCalls[0].Sender)
	assert.Equal(t, bob, cg.sendCalls[0].Recipient)
	assert.Contains(t, cg.sendCalls[0].Content, `"one"`)
}

func TestSwipeRightNotificationFailureIsNonFatal(t *testing.T) {
	q, _, cg := loadedQueue(t, []Post{post(1, "one", "Go")})
	cg.onSend = func(Message) (Message, error) {
		return Message{}, errors.New("chat down")
	}

	assert.NoError(t, q.SwipeRight(context.Background(), alice, alice.ID))
}

func TestSwipeRightGatewayFailure(t *testing.T) {
	q, fg, _ := loadedQueue(t, []Post{
		post(1, "one", "Go"),
		post(2, "two", "Go"),
	})
	fg.swipeErr = errors.New("backend down")

	err := q.SwipeRight(context.Background(), alice, alice.ID)
	require.Error(t, err)
	assert.Error(t, q.LastError())

	// The local swipe already happened; only the report failed.
	assert.Equal(t, 1, q.Cursor())
	assert.Len(t, q.Contributed(), 1)
}

func TestSwipeLeftExcludesAndAdvances(t *testing.T) {
	// Three posts, categories X, Y, X. Left-swiping walks the queue without
	// revisiting excluded posts and drops facet Y once its last post is gone.
	q, fg, _ := loadedQueue(t, []Post{
		post(1, "p1", "X"),
		post(2, "p2", "Y"),
		post(3, "p3", "X"),
	})
	assert.Equal(t, []string{"X", "Y"}, q.Categories())

	// Swiping p1 away advances past the former index 1, so the cursor lands
	// on p3 in the shrunk visible set.
	require.NoError(t, q.SwipeLeft(context.Background(), alice.ID))
	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, int64(3), cur.ID)
	assert.Equal(t, []string{"X", "Y"}, q.Categories(), "p3 still carries X")

	require.NoError(t, q.SwipeLeft(context.Background(), alice.ID))
	cur, ok = q.Current()
	require.True(t, ok)
	assert.Equal(t, int64(2), cur.ID)
	assert.Equal(t, []string{"Y"}, q.Categories(), "facet X must vanish with its last post")

	require.NoError(t, q.SwipeLeft(context.Background(), alice.ID))
	_, ok = q.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Cursor())

	require.Len(t, fg.leftSwipes, 3)
	assert.Equal(t, DirectionLeft, fg.leftSwipes[0].Direction)
}

func TestSwipeLeftOnEmptyQueue(t *testing.T) {
	q, _, _ := loadedQueue(t, nil)

	assert.ErrorIs(t, q.SwipeLeft(context.Background(), alice.ID), ErrNoMorePosts)
	assert.ErrorIs(t, q.SwipeRight(context.Background(), alice, alice.ID), ErrNoMorePosts)
	_, ok := q.Current()
	assert.False(t, ok)
}

func TestSwipeLeftSinglePostEmptiesQueue(t *testing.T) {
	q, _, _ := loadedQueue(t, []Post{post(1, "only", "Go")})

	require.NoError(t, q.SwipeLeft(context.Background(), alice.ID))
	assert.Empty(t, q.Visible())
	assert.Empty(t, q.Categories())

	assert.ErrorIs(t, q.SwipeLeft(context.Background(), alice.ID), ErrNoMorePosts)
}

func TestSwipeLeftGatewayFailureKeepsExclusion(t *testing.T) {
	q, fg, _ := loadedQueue(t, []Post{
		post(1, "one", "Go"),
		post(2, "two", "Go"),
	})
	fg.leftErr = errors.New("backend down")

	require.Error(t, q.SwipeLeft(context.Background(), alice.ID))
	assert.Len(t, q.Visible(), 1, "local exclusion stands even when the report fails")
	assert.Error(t, q.LastError())
}

func TestSetActiveCategories(t *testing.T) {
	q, _, _ := loadedQueue(t, []Post{
		post(1, "go post", "Go"),
		post(2, "rust post", "Rust"),
		post(3, "second go", "Go"),
	})

	q.SetActiveCategories([]string{"Go", "Haskell", " ", ""})
	assert.Equal(t, []string{"Go"}, q.ActiveCategories(), "unknown and blank values are dropped")
	assert.Equal(t, 0, q.Cursor())

	visible := q.Visible()
	require.Len(t, visible, 2)
	assert.Equal(t, int64(1), visible[0].ID)
	assert.Equal(t, int64(3), visible[1].ID)

	q.SetActiveCategories(nil)
	assert.Empty(t, q.ActiveCategories())
	assert.Len(t, q.Visible(), 3)
}

func TestActiveFilterNarrowsSwipeOrder(t *testing.T) {
	q, _, _ := loadedQueue(t, []Post{
		post(1, "go one", "Go"),
		post(2, "rust", "Rust"),
		post(3, "go two", "Go"),
	})
	q.SetActiveCategories([]string{"Go"})

	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, int64(1), cur.ID)

	require.NoError(t, q.SwipeLeft(context.Background(), alice.ID))
	cur, ok = q.Current()
	require.True(t, ok)
	assert.Equal(t, int64(3), cur.ID, "filtered view must skip the Rust post")
}

func TestLoadSendsActiveFilters(t *testing.T) {
	q, fg, _ := loadedQueue(t, []Post{
		post(1, "one", "Go"),
		post(2, "two", "Rust"),
	})

	q.SetActiveCategories([]string{"Rust", "Go"})
	require.NoError(t, q.Load(context.Background(), alice.ID))
	assert.Equal(t, []string{"Go", "Rust"}, fg.feedFilters)
}

func TestReloadPrunesActiveFilters(t *testing.T) {
	q, fg, _ := loadedQueue(t, []Post{
		post(1, "a post", "A"),
		post(2, "b post", "B"),
	})

	q.SetActiveCategories([]string{"A", "B"})
	fg.feed = []Post{post(3, "only a", "A")}
	require.NoError(t, q.Load(context.Background(), alice.ID))

	assert.Equal(t, []string{"A"}, q.ActiveCategories(), "filters for absent categories must be pruned on reload")
	assert.Equal(t, []string{"A"}, q.Categories())
}

func TestSeedContributions(t *testing.T) {
	log := &fakeContributionLog{entries: []ContributedPost{
		{Post: post(9, "earlier session", "Go"), SwipedAt: time.Now()},
	}}
	fg := &fakeFeedGateway{}
	q := NewFeedQueue(fg, &fakeChatGateway{}, log, testLogger())

	require.NoError(t, q.SeedContributions(context.Background()))
	require.Len(t, q.Contributed(), 1)
	assert.Equal(t, "earlier session", q.Contributed()[0].Title)
}

type fakeContributionLog struct {
	entries []ContributedPost
	saved   []ContributedPost
}

func (l *fakeContributionLog) SaveContribution(_ context.Context, entry ContributedPost) error {
	l.saved = append(l.saved, entry)
	return nil
}

func (l *fakeContributionLog) Contributions(_ context.Context) ([]ContributedPost, error) {
	return l.entries, nil
}
