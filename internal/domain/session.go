package domain

import (
	"context"
	"sync"
)

// Command is a deferred fetch produced by a selection change. The selection
// itself is applied synchronously; the caller decides when (and whether) to
// await the network side of it. Responses are applied under the stores'
// sequence guards, so awaiting commands out of order is safe.
type Command func(ctx context.Context) error

// SelectionController owns the two pieces of externally-driven selection
// state: which conversation partner is active, and the search text and
// category filters. No other component keeps a copy; all reads go through
// the controller.
type SelectionController struct {
	current   Identity
	messages  *MessageStore
	feed      *FeedQueue
	directory UserDirectory

	mu         sync.Mutex
	peer       *Identity
	searchText string
	users      []Identity
}

// NewSelectionController creates the controller for one logged-in session.
func NewSelectionController(current Identity, messages *MessageStore, feed *FeedQueue, directory UserDirectory) *SelectionController {
	return &SelectionController{
		current:   current,
		messages:  messages,
		feed:      feed,
		directory: directory,
	}
}

// Current returns the logged-in identity the session belongs to.
func (c *SelectionController) Current() Identity {
	return c.current
}

// SelectPeer switches the active conversation partner and returns the fetch
// command for the new conversation. Selecting nil clears the conversation
// view with no network call and returns a nil command.
func (c *SelectionController) SelectPeer(peer *Identity) Command {
	c.mu.Lock()
	if peer == nil {
		c.peer = nil
		c.mu.Unlock()
		c.messages.ClearConversation()
		return nil
	}
	p := *peer
	c.peer = &p
	c.mu.Unlock()

	return func(ctx context.Context) error {
		return c.messages.FetchConversation(ctx, c.current, p)
	}
}

// SelectedPeer returns the active conversation partner, or nil.
func (c *SelectionController) SelectedPeer() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peer == nil {
		return nil
	}
	p := *c.peer
	return &p
}

// SetSearchText updates the inbox search string. It switches which
// read-model Summaries uses; it never triggers a fetch.
func (c *SelectionController) SetSearchText(text string) {
	c.mu.Lock()
	c.searchText = text
	c.mu.Unlock()
}

// SearchText returns the current inbox search string.
func (c *SelectionController) SearchText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searchText
}

// SetCategories replaces the feed's active category filters. Category
// selection is independent of the conversation selection.
func (c *SelectionController) SetCategories(categories []string) {
	c.feed.SetActiveCategories(categories)
}

// Categories returns the feed's current filter set.
func (c *SelectionController) Categories() []string {
	return c.feed.ActiveCategories()
}

// RefreshDirectory returns the command that reloads the user directory the
// inbox read-models draw candidates from.
func (c *SelectionController) RefreshDirectory() Command {
	return func(ctx context.Context) error {
		users, err := c.directory.ListUsers(ctx)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.users = users
		c.mu.Unlock()
		return nil
	}
}

// RefreshInbox returns the command that reloads the cross-conversation
// message set.
func (c *SelectionController) RefreshInbox() Command {
	return func(ctx context.Context) error {
		return c.messages.FetchAllForUser(ctx, c.current)
	}
}

// Summaries projects the inbox rows for the current search text: prior
// contacts when the search is empty, the whole directory otherwise.
func (c *SelectionController) Summaries() []ConversationSummary {
	c.mu.Lock()
	users := append([]Identity(nil), c.users...)
	query := c.searchText
	c.mu.Unlock()
	return ProjectDirectory(users, c.messages.AllMessages(), c.current, query)
}
