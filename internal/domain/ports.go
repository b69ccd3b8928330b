package domain

import (
	"context"
	"time"
)

// ChatGateway defines the remote message operations the MessageStore needs.
type ChatGateway interface {
	// SendMessage creates a message on the backend and returns the server's
	// copy, with its assigned id and timestamp.
	SendMessage(ctx context.Context, sender, recipient Identity, content string, sentAt time.Time) (Message, error)

	// MessagesForUser returns every message where the user is sender or
	// recipient, across all conversations.
	MessagesForUser(ctx context.Context, user Identity) ([]Message, error)

	// MessagesBetween returns the ordered history for a pair of users.
	MessagesBetween(ctx context.Context, a, b Identity) ([]Message, error)

	// SearchMessages returns messages whose content matches the keyword.
	SearchMessages(ctx context.Context, keyword string) ([]Message, error)

	// DeleteMessage removes a message by its server id.
	DeleteMessage(ctx context.Context, id int64) error
}

// UserDirectory lists and searches registered users.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]Identity, error)
	SearchUsers(ctx context.Context, query string) ([]Identity, error)
}

// FeedGateway defines the remote post and swipe operations the FeedQueue
// needs.
type FeedGateway interface {
	// Feed returns the unswiped posts for a user, optionally narrowed to the
	// given categories.
	Feed(ctx context.Context, userID int64, categories []string) ([]Post, error)

	// RecordSwipe records a right swipe.
	RecordSwipe(ctx context.Context, rec SwipeRecord) error

	// RecordLeftSwipe records a left swipe.
	RecordLeftSwipe(ctx context.Context, rec SwipeRecord) error

	// SwipedInbox returns the posts the user has right-swiped, newest first.
	SwipedInbox(ctx context.Context, userID int64) ([]ContributedPost, error)
}

// MessageCache persists confirmed messages locally so the inbox projection
// can be seeded before the first fetch completes. Writes are best-effort.
type MessageCache interface {
	SaveMessages(ctx context.Context, msgs []Message) error
	MessagesForUser(ctx context.Context, canonicalName string) ([]Message, error)
}

// ContributionLog persists the right-swipe side list across sessions.
type ContributionLog interface {
	SaveContribution(ctx context.Context, c ContributedPost) error
	Contributions(ctx context.Context) ([]ContributedPost, error)
}
