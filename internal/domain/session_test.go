package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	users     []Identity
	listCalls int
}

func (d *fakeDirectory) ListUsers(_ context.Context) ([]Identity, error) {
	d.listCalls++
	return d.users, nil
}

func (d *fakeDirectory) SearchUsers(_ context.Context, _ string) ([]Identity, error) {
	return d.users, nil
}

func newController(t *testing.T, gw *fakeChatGateway) (*SelectionController, *fakeDirectory) {
	t.Helper()
	store := NewMessageStore(gw, nil, testLogger())
	feed := NewFeedQueue(&fakeFeedGateway{}, gw, nil, testLogger())
	dir := &fakeDirectory{users: []Identity{alice, bob, carol}}
	return NewSelectionController(alice, store, feed, dir), dir
}

func TestSelectPeerFetchesConversation(t *testing.T) {
	gw := &fakeChatGateway{}
	gw.onBetween = func(int) ([]Message, error) {
		return []Message{confirmedMsg(1, alice, bob, "hi", time.Now())}, nil
	}
	ctrl, _ := newController(t, gw)

	cmd := ctrl.SelectPeer(&bob)
	require.NotNil(t, cmd)
	require.NoError(t, cmd(context.Background()))

	assert.Equal(t, 1, gw.betweenCalls)
	require.NotNil(t, ctrl.SelectedPeer())
	assert.True(t, ctrl.SelectedPeer().Is(bob))
}

func TestSelectPeerNilClearsWithoutFetch(t *testing.T) {
	gw := &fakeChatGateway{}
	gw.onBetween = func(int) ([]Message, error) {
		return []Message{confirmedMsg(1, alice, bob, "hi", time.Now())}, nil
	}
	ctrl, _ := newController(t, gw)

	cmd := ctrl.SelectPeer(&bob)
	require.NoError(t, cmd(context.Background()))

	cmd = ctrl.SelectPeer(nil)
	assert.Nil(t, cmd)
	assert.Nil(t, ctrl.SelectedPeer())
	assert.Equal(t, 1, gw.betweenCalls, "deselecting must not hit the network")
}

func TestSummariesSwitchReadModels(t *testing.T) {
	gw := &fakeChatGateway{}
	gw.forUser = []Message{confirmedMsg(1, alice, bob, "hi", time.Now())}
	ctrl, dir := newController(t, gw)

	require.NoError(t, ctrl.RefreshDirectory()(context.Background()))
	assert.Equal(t, 1, dir.listCalls)
	require.NoError(t, ctrl.RefreshInbox()(context.Background()))

	// Empty search: prior contacts only.
	summaries := ctrl.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "bob", summaries[0].Peer.CanonicalName)

	// Non-empty search: whole directory.
	ctrl.SetSearchText("carol")
	summaries = ctrl.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "carol", summaries[0].Peer.CanonicalName)
	assert.Nil(t, summaries[0].LastMessage)
}

func TestCategoriesDelegateToFeed(t *testing.T) {
	ctrl, _ := newController(t, &fakeChatGateway{})

	// The facet index is empty before any load, so nothing sticks.
	ctrl.SetCategories([]string{"Go"})
	assert.Empty(t, ctrl.Categories())
}
