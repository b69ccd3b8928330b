package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devswipe/devswipe/internal/domain"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func message(id int64, sender, recipient, content string, at time.Time) domain.Message {
	return domain.Message{
		ID:        id,
		Sender:    domain.NewIdentity(0, sender, ""),
		Recipient: domain.NewIdentity(0, recipient, ""),
		Content:   content,
		Timestamp: at,
		State:     domain.Confirmed,
	}
}

func TestSaveAndLoadMessages(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	err := repo.SaveMessages(ctx, []domain.Message{
		message(2, "alice", "bob", "second", at.Add(time.Minute)),
		message(1, "bob", "alice", "first", at),
		message(3, "bob", "carol", "other conversation", at),
	})
	require.NoError(t, err)

	msgs, err := repo.MessagesForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1), msgs[0].ID, "messages come back in id order")
	assert.Equal(t, int64(2), msgs[1].ID)
	assert.Equal(t, "bob", msgs[0].Sender.CanonicalName)
	assert.Equal(t, domain.Confirmed, msgs[0].State)
	assert.True(t, msgs[0].Timestamp.Equal(at))
}

func TestSaveMessagesIgnoresDuplicatesAndPending(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	at := time.Now()

	require.NoError(t, repo.SaveMessages(ctx, []domain.Message{
		message(1, "alice", "bob", "original", at),
	}))

	pending := message(0, "alice", "bob", "unconfirmed", at)
	pending.State = domain.Pending
	require.NoError(t, repo.SaveMessages(ctx, []domain.Message{
		message(1, "alice", "bob", "rewritten", at),
		pending,
	}))

	msgs, err := repo.MessagesForUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "original", msgs[0].Content, "a cached id is never overwritten")
}

func TestMessagesForUnknownUser(t *testing.T) {
	repo := newTestRepository(t)

	msgs, err := repo.MessagesForUser(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestContributionsRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	older := domain.ContributedPost{
		Post:     domain.Post{ID: 1, Title: "older", Author: domain.NewIdentity(0, "bob", ""), Category: "Go"},
		SwipedAt: at,
	}
	newer := domain.ContributedPost{
		Post:     domain.Post{ID: 2, Title: "newer", Author: domain.NewIdentity(0, "carol", ""), Category: "Rust"},
		SwipedAt: at.Add(time.Hour),
	}
	require.NoError(t, repo.SaveContribution(ctx, older))
	require.NoError(t, repo.SaveContribution(ctx, newer))

	entries, err := repo.Contributions(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "newer", entries[0].Title, "newest swipe comes first")
	assert.Equal(t, "older", entries[1].Title)
	assert.Equal(t, "bob", entries[1].Author.CanonicalName)
}

func TestSaveContributionUpdatesSwipeTime(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	entry := domain.ContributedPost{
		Post:     domain.Post{ID: 1, Title: "p", Author: domain.NewIdentity(0, "bob", ""), Category: "Go"},
		SwipedAt: at,
	}
	require.NoError(t, repo.SaveContribution(ctx, entry))

	entry.SwipedAt = at.Add(2 * time.Hour)
	require.NoError(t, repo.SaveContribution(ctx, entry))

	entries, err := repo.Contributions(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1, "re-swiping the same post must not duplicate the row")
	assert.True(t, entries[0].SwipedAt.Equal(entry.SwipedAt))
}
