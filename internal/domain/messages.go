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

// tempIDBase places temporary ids above any plausible server id so that
// optimistic sends sort after every confirmed message. Temporary ids come
// from a per-session counter, never from the wall clock.
const tempIDBase = int64(1) << 62

// MessageStore holds the message set for the active conversation and the
// cross-conversation set the inbox projection reads. Sends are optimistic:
// the message appears locally before the request is issued and is reconciled
// with the server copy, or rolled back, when the request resolves.
//
// Fetch responses are applied in issue order. Every fetch is tagged with a
// monotonic sequence number for its slot (one per conversation pair, one for
// the cross-conversation set) and a response is discarded when a later fetch
// for the same slot has been issued since.
type MessageStore struct {
	gateway ChatGateway
	cache   MessageCache // optional
	logger  *slog.Logger

	mu           sync.Mutex
	conversation []Message
	all          []Message
	lastErr      error
	tempCounter  int64
	convSeq      map[string]uint64
	allSeq       uint64
}

// NewMessageStore creates a MessageStore. The cache may be nil, in which
// case nothing is persisted locally.
func NewMessageStore(gateway ChatGateway, cache MessageCache, logger *slog.Logger) *MessageStore {
	return &MessageStore{
		gateway: gateway,
		cache:   cache,
		logger:  logger,
		convSeq: make(map[string]uint64),
	}
}

// SendMessage inserts a pending copy of the draft into the active
// conversation, synchronously, then issues the create request. On success
// the pending entry is replaced by the server copy and both message sets are
// refreshed; on failure the pending entry is removed and the error returned.
// A pending entry is never left behind by a failed call, and at most one
// entry is confirmed per send.
func (s *MessageStore) SendMessage(ctx context.Context, sender, recipient Identity, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, &ValidationError{Reason: "message content is empty"}
	}
	if recipient.Zero() {
		return Message{}, &ValidationError{Reason: "no recipient selected"}
	}

	pending := Message{
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Timestamp: time.Now(),
		State:     Pending,
	}

	s.mu.Lock()
	s.tempCounter++
	pending.ID = tempIDBase + s.tempCounter
	s.conversation = append(s.conversation, pending)
	s.mu.Unlock()

	confirmed, err := s.gateway.SendMessage(ctx, sender, recipient, content, pending.Timestamp)
	if err != nil {
		s.mu.Lock()
		s.conversation = removeByID(s.conversation, pending.ID)
		s.lastErr = err
		s.mu.Unlock()
		return Message{}, fmt.Errorf("send message: %w", err)
	}
	confirmed.State = Confirmed

	s.mu.Lock()
	for i := range s.conversation {
		if s.conversation[i].ID == pending.ID {
			s.conversation[i] = confirmed
			break
		}
	}
	sortByID(s.conversation)
	s.lastErr = nil
	s.mu.Unlock()

	s.saveToCache(ctx, confirmed)

	// Keep the conversation view and the inbox set current. The send already
	// succeeded, so a failed refresh is logged and nothing else.
	if err := s.FetchConversation(ctx, sender, recipient); err != nil {
		s.logger.Warn("refresh conversation after send failed", "error", err)
	}
	if err := s.FetchAllForUser(ctx, sender); err != nil {
		s.logger.Warn("refresh inbox after send failed", "error", err)
	}

	return confirmed, nil
}

// FetchConversation replaces the active message list with the server's
// history for the pair. Unconfirmed optimistic sends survive the
// replacement, so a selection change cannot discard an in-flight send.
func (s *MessageStore) FetchConversation(ctx context.Context, a, b Identity) error {
	key := pairKey(a, b)
	s.mu.Lock()
	s.convSeq[key]++
	seq := s.convSeq[key]
	s.mu.Unlock()

	msgs, err := s.gateway.MessagesBetween(ctx, a, b)
	if err != nil {
		s.setErr(err)
		return fmt.Errorf("fetch conversation: %w", err)
	}

	s.mu.Lock()
	if seq != s.convSeq[key] {
		s.mu.Unlock()
		s.logger.Debug("discarding stale conversation response", "pair", key)
		return nil
	}
	merged := append([]Message(nil), msgs...)
	for _, m := range s.conversation {
		if m.State == Pending {
			merged = append(merged, m)
		}
	}
	sortByID(merged)
	s.conversation = merged
	s.lastErr = nil
	s.mu.Unlock()

	s.saveToCache(ctx, msgs...)
	return nil
}

// FetchAllForUser replaces the cross-conversation message set used by the
// inbox projection.
func (s *MessageStore) FetchAllForUser(ctx context.Context, user Identity) error {
	s.mu.Lock()
	s.allSeq++
	seq := s.allSeq
	s.mu.Unlock()

	msgs, err := s.gateway.MessagesForUser(ctx, user)
	if err != nil {
		s.setErr(err)
		return fmt.Errorf("fetch messages for user: %w", err)
	}

	s.mu.Lock()
	if seq != s.allSeq {
		s.mu.Unlock()
		s.logger.Debug("discarding stale inbox response", "user", user.CanonicalName)
		return nil
	}
	sortByID(msgs)
	s.all = msgs
	s.mu.Unlock()

	s.saveToCache(ctx, msgs...)
	return nil
}

// DeleteMessage removes the message on the backend, then from the local
// lists. Local state changes only when the request succeeds.
func (s *MessageStore) DeleteMessage(ctx context.Context, id int64) error {
	if err := s.gateway.DeleteMessage(ctx, id); err != nil {
		s.setErr(err)
		return fmt.Errorf("delete message: %w", err)
	}
	s.mu.Lock()
	s.conversation = removeByID(s.conversation, id)
	s.all = removeByID(s.all, id)
	s.mu.Unlock()
	return nil
}

// Search replaces the conversation view with messages matching the keyword.
func (s *MessageStore) Search(ctx context.Context, keyword string) ([]Message, error) {
	msgs, err := s.gateway.SearchMessages(ctx, keyword)
	if err != nil {
		s.setErr(err)
		return nil, fmt.Errorf("search messages: %w", err)
	}
	sortByID(msgs)
	s.mu.Lock()
	s.conversation = append([]Message(nil), msgs...)
	s.mu.Unlock()
	return msgs, nil
}

// ClearConversation empties the conversation view without a network call.
// Unconfirmed sends are kept so an in-flight reconciliation can still find
// them.
func (s *MessageStore) ClearConversation() {
	s.mu.Lock()
	kept := make([]Message, 0)
	for _, m := range s.conversation {
		if m.State == Pending {
			kept = append(kept, m)
		}
	}
	s.conversation = kept
	s.mu.Unlock()
}

// SeedFromCache fills the cross-conversation set from the local cache when
// nothing has been fetched yet.
func (s *MessageStore) SeedFromCache(ctx context.Context, user Identity) error {
	if s.cache == nil {
		return nil
	}
	msgs, err := s.cache.MessagesForUser(ctx, user.CanonicalName)
	if err != nil {
		return fmt.Errorf("seed from cache: %w", err)
	}
	s.mu.Lock()
	if len(s.all) == 0 {
		sortByID(msgs)
		s.all = msgs
	}
	s.mu.Unlock()
	return nil
}

// Conversation returns a copy of the active conversation, ordered by server
// id with optimistic sends last.
func (s *MessageStore) Conversation() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.conversation...)
}

// AllMessages returns a copy of the cross-conversation message set.
func (s *MessageStore) AllMessages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.all...)
}

// LastError returns the most recent gateway error, or nil after a
// successful operation.
func (s *MessageStore) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *MessageStore) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *MessageStore) saveToCache(ctx context.Context, msgs ...Message) {
	if s.cache == nil {
		return
	}
	confirmed := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.State == Confirmed {
			confirmed = append(confirmed, m)
		}
	}
	if len(confirmed) == 0 {
		return
	}
	if err := s.cache.SaveMessages(ctx, confirmed); err != nil {
		s.logger.Warn("message cache write failed", "error", err)
	}
}

// pairKey builds an order-independent slot key for a conversation pair.
func pairKey(a, b Identity) string {
	x, y := a.CanonicalName, b.CanonicalName
	if y < x {
		x, y = y, x
	}
	return x + "\x00" + y
}

// sortByID orders messages by server id ascending when both compared ids
// are present and preserves insertion order otherwise. Temporary ids are
// larger than any server id, so pending sends end up last.
func sortByID(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].ID != 0 && msgs[j].ID != 0 {
			return msgs[i].ID < msgs[j].ID
		}
		return false
	})
}

func removeByID(msgs []Message, id int64) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}
