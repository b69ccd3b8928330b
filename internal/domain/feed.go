package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// FeedQueue holds the fetched post list, the left-swipe exclusion set, the
// cursor and the derived category facet index.
//
// The queue is circular: advancing past the last visible post wraps back to
// index 0, so already right-swiped posts reappear once the list is
// exhausted. Left-swiped posts never reappear within one Load cycle because
// the exclusion set only grows.
//
// Invariants: the cursor is a valid index into the visible set whenever that
// set is non-empty, and 0 otherwise; the active category filters are always
// a subset of the categories present on still-visible posts.
type FeedQueue struct {
	gateway FeedGateway
	chat    ChatGateway     // best-effort author notification on right swipe
	log     ContributionLog // optional
	logger  *slog.Logger

	mu          sync.Mutex
	posts       []Post
	excluded    map[int64]struct{}
	cursor      int
	categories  []string // facet index: sorted, deduplicated, non-empty
	active      map[string]struct{}
	contributed []ContributedPost
	lastErr     error
}

// NewFeedQueue creates a FeedQueue. The contribution log may be nil.
func NewFeedQueue(gateway FeedGateway, chat ChatGateway, log ContributionLog, logger *slog.Logger) *FeedQueue {
	return &FeedQueue{
		gateway:  gateway,
		chat:     chat,
		log:      log,
		logger:   logger,
		excluded: make(map[int64]struct{}),
		active:   make(map[string]struct{}),
	}
}

// Load replaces the post list with a fresh feed fetch for the user. The
// exclusion set is cleared, the cursor resets to 0 and the facet index is
// recomputed from the new posts. Active category filters are sent along as
// the server-side narrowing the backend supports, and re-pruned against
// whatever comes back.
func (q *FeedQueue) Load(ctx context.Context, userID int64) error {
	q.mu.Lock()
	filters := setToSorted(q.active)
	q.mu.Unlock()

	posts, err := q.gateway.Feed(ctx, userID, filters)
	if err != nil {
		q.mu.Lock()
		q.lastErr = err
		q.mu.Unlock()
		return fmt.Errorf("load feed: %w", err)
	}

	q.mu.Lock()
	q.posts = posts
	q.excluded = make(map[int64]struct{})
	q.recomputeFacetsLocked()
	q.cursor = 0
	q.lastErr = nil
	q.mu.Unlock()
	return nil
}

// Current returns the post under the cursor, or false when the visible set
// is empty and there is nothing left to swipe.
func (q *FeedQueue) Current() (Post, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	visible := q.visibleLocked()
	if len(visible) == 0 {
		return Post{}, false
	}
	return visible[q.cursor], true
}

// SwipeRight records the current post as a contribution, reports the swipe
// to the backend and advances the cursor. A notification message to the
// post's author is sent best-effort; its failure never blocks advancing.
func (q *FeedQueue) SwipeRight(ctx context.Context, user Identity, userID int64) error {
	q.mu.Lock()
	visible := q.visibleLocked()
	if len(visible) == 0 {
		q.mu.Unlock()
		return ErrNoMorePosts
	}
	post := visible[q.cursor]
	swipedAt := time.Now()
	entry := ContributedPost{Post: post, SwipedAt: swipedAt}
	q.contributed = append([]ContributedPost{entry}, q.contributed...)
	q.advanceLocked(len(visible))
	q.mu.Unlock()

	if q.log != nil {
		if err := q.log.SaveContribution(ctx, entry); err != nil {
			q.logger.Warn("contribution log write failed", "error", err)
		}
	}

	rec := SwipeRecord{PostID: post.ID, UserID: userID, Direction: DirectionRight, Timestamp: swipedAt}
	if err := q.gateway.RecordSwipe(ctx, rec); err != nil {
		q.mu.Lock()
		q.lastErr = err
		q.mu.Unlock()
		return fmt.Errorf("record swipe: %w", err)
	}

	if !post.Author.Zero() {
		content := fmt.Sprintf("Hey %s, I right-swiped on your post %q. Let's collaborate!",
			post.Author.CanonicalName, post.Title)
		if _, err := q.chat.SendMessage(ctx, user, post.Author, content, swipedAt); err != nil {
			q.logger.Warn("swipe notification failed", "author", post.Author.CanonicalName, "error", err)
		}
	}

	return nil
}

// SwipeLeft adds the current post to the exclusion set, reports the left
// swipe and advances the cursor with the same wrap policy. Swiping a post
// that is already excluded cannot happen: excluded posts are not visible.
func (q *FeedQueue) SwipeLeft(ctx context.Context, userID int64) error {
	q.mu.Lock()
	visible := q.visibleLocked()
	if len(visible) == 0 {
		q.mu.Unlock()
		return ErrNoMorePosts
	}
	post := visible[q.cursor]
	q.advanceLocked(len(visible))
	q.excluded[post.ID] = struct{}{}
	q.recomputeFacetsLocked()
	if remaining := len(q.visibleLocked()); q.cursor >= remaining {
		q.cursor = 0
	}
	q.mu.Unlock()

	rec := SwipeRecord{PostID: post.ID, UserID: userID, Direction: DirectionLeft, Timestamp: time.Now()}
	if err := q.gateway.RecordLeftSwipe(ctx, rec); err != nil {
		q.mu.Lock()
		q.lastErr = err
		q.mu.Unlock()
		return fmt.Errorf("record left swipe: %w", err)
	}
	return nil
}

// SetActiveCategories replaces the filter set. Values that are not present
// in the facet index are dropped, and the cursor resets to 0 because the
// visible index space changes with the filter.
func (q *FeedQueue) SetActiveCategories(next []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.active = make(map[string]struct{}, len(next))
	for _, c := range next {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		for _, known := range q.categories {
			if known == c {
				q.active[c] = struct{}{}
				break
			}
		}
	}
	q.cursor = 0
}

// Visible returns a copy of the posts not excluded and not filtered out.
func (q *FeedQueue) Visible() []Post {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Post(nil), q.visibleLocked()...)
}

// Categories returns the facet index: the sorted, deduplicated category
// values of the posts still visible.
func (q *FeedQueue) Categories() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.categories...)
}

// ActiveCategories returns the current filter set, sorted.
func (q *FeedQueue) ActiveCategories() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return setToSorted(q.active)
}

// Cursor returns the current cursor position.
func (q *FeedQueue) Cursor() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cursor
}

// Contributed returns the right-swipe side list, newest first.
func (q *FeedQueue) Contributed() []ContributedPost {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]ContributedPost(nil), q.contributed...)
}

// SeedContributions fills the side list from the local log when nothing has
// been swiped yet this session.
func (q *FeedQueue) SeedContributions(ctx context.Context) error {
	if q.log == nil {
		return nil
	}
	entries, err := q.log.Contributions(ctx)
	if err != nil {
		return fmt.Errorf("seed contributions: %w", err)
	}
	q.mu.Lock()
	if len(q.contributed) == 0 {
		q.contributed = entries
	}
	q.mu.Unlock()
	return nil
}

// SwipedInbox fetches the server-side list of right-swiped posts.
func (q *FeedQueue) SwipedInbox(ctx context.Context, userID int64) ([]ContributedPost, error) {
	entries, err := q.gateway.SwipedInbox(ctx, userID)
	if err != nil {
		q.mu.Lock()
		q.lastErr = err
		q.mu.Unlock()
		return nil, fmt.Errorf("fetch swiped inbox: %w", err)
	}
	return entries, nil
}

// LastError returns the most recent gateway error, or nil after a
// successful operation.
func (q *FeedQueue) LastError() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}

// visibleLocked is posts minus the exclusion set, additionally narrowed by
// the active category filters when any are set.
func (q *FeedQueue) visibleLocked() []Post {
	out := make([]Post, 0, len(q.posts))
	for _, p := range q.posts {
		if _, gone := q.excluded[p.ID]; gone {
			continue
		}
		if len(q.active) > 0 {
			if _, ok := q.active[strings.TrimSpace(p.Category)]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// advanceLocked moves the cursor one step through a visible set of the
// given size: increment, wrapping to 0 from the last index.
func (q *FeedQueue) advanceLocked(visibleLen int) {
	if q.cursor >= visibleLen-1 {
		q.cursor = 0
		return
	}
	q.cursor++
}

// recomputeFacetsLocked rebuilds the facet index from the posts that remain
// after exclusion and prunes active filters that reference now-absent
// categories. The cursor resets only when pruning actually changed the size
// of the visible set.
func (q *FeedQueue) recomputeFacetsLocked() {
	before := len(q.visibleLocked())

	seen := make(map[string]struct{})
	cats := make([]string, 0)
	for _, p := range q.posts {
		if _, gone := q.excluded[p.ID]; gone {
			continue
		}
		c := strings.TrimSpace(p.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		cats = append(cats, c)
	}
	sort.Strings(cats)
	q.categories = cats

	pruned := false
	for c := range q.active {
		if _, ok := seen[c]; !ok {
			delete(q.active, c)
			pruned = true
		}
	}
	if pruned && len(q.visibleLocked()) != before {
		q.cursor = 0
	}
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
