package domain

import "time"

// MessageState tracks a message through the optimistic send pipeline.
type MessageState int

const (
	// Confirmed messages carry a server-assigned id.
	Confirmed MessageState = iota

	// Pending messages exist only locally, under a temporary id, until the
	// server accepts or rejects the send. A pending message transitions to
	// exactly one of: Confirmed (id replaced by the server's) or removed.
	Pending
)

// Message is a single chat message between two users.
type Message struct {
	ID        int64
	Sender    Identity
	Recipient Identity
	Content   string
	Timestamp time.Time
	State     MessageState
}

// Involves reports whether the message was exchanged between the two given
// participants, in either direction.
func (m Message) Involves(a, b Identity) bool {
	return (m.Sender.Is(a) && m.Recipient.Is(b)) ||
		(m.Sender.Is(b) && m.Recipient.Is(a))
}

// ConversationSummary is one inbox row: a peer plus the most recent message
// exchanged with them. Summaries are derived views, recomputed from the raw
// message set and never mutated in place.
type ConversationSummary struct {
	Peer Identity

	// LastMessage is nil when no messages have been exchanged yet.
	LastMessage *Message

	// UnreadCount is always 0 until the backend exposes a read/unread signal.
	UnreadCount int
}
