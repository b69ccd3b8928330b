package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectOneSummaryPerPeer(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	all := []Message{
		confirmedMsg(1, alice, bob, "first to bob", base),
		confirmedMsg(2, bob, alice, "reply", base.Add(time.Hour)),
		confirmedMsg(3, alice, carol, "hi carol", base.Add(2*time.Hour)),
		confirmedMsg(4, bob, alice, "latest from bob", base.Add(3*time.Hour)),
	}

	summaries := Project(all, alice)
	require.Len(t, summaries, 2)

	assert.Equal(t, "bob", summaries[0].Peer.CanonicalName)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, int64(4), summaries[0].LastMessage.ID, "summary must carry the newest message, not the last in slice order")

	assert.Equal(t, "carol", summaries[1].Peer.CanonicalName)
	require.NotNil(t, summaries[1].LastMessage)
	assert.Equal(t, int64(3), summaries[1].LastMessage.ID)
}

func TestProjectIsPure(t *testing.T) {
	all := []Message{
		confirmedMsg(1, alice, bob, "a", time.Now()),
		confirmedMsg(2, carol, alice, "b", time.Now()),
	}

	first := Project(all, alice)
	second := Project(all, alice)
	assert.Equal(t, first, second, "repeated projection of the same input must be identical")

	// Mutating a returned summary must not leak into the source set.
	first[0].LastMessage.Content = "mutated"
	assert.Equal(t, "a", all[0].Content)
}

func TestProjectSkipsSelfAndZeroIdentities(t *testing.T) {
	all := []Message{
		confirmedMsg(1, alice, alice, "note to self", time.Now()),
		{ID: 2, Sender: Identity{}, Recipient: alice, Content: "ghost", State: Confirmed},
	}
	assert.Empty(t, Project(all, alice))
}

func TestProjectDirectoryDefaultsToPriorContacts(t *testing.T) {
	users := []Identity{carol, bob, alice}
	all := []Message{confirmedMsg(1, alice, bob, "hi", time.Now())}

	summaries := ProjectDirectory(users, all, alice, "")
	require.Len(t, summaries, 1)
	assert.Equal(t, "bob", summaries[0].Peer.CanonicalName)
	require.NotNil(t, summaries[0].LastMessage)
}

func TestProjectDirectorySearchSpansWholeDirectory(t *testing.T) {
	users := []Identity{carol, bob, alice}
	all := []Message{confirmedMsg(1, alice, bob, "hi", time.Now())}

	summaries := ProjectDirectory(users, all, alice, "CAR")
	require.Len(t, summaries, 1)
	assert.Equal(t, "carol", summaries[0].Peer.CanonicalName)
	assert.Nil(t, summaries[0].LastMessage, "never-contacted peer has no last message")
}

func TestProjectDirectoryNeverListsCurrentUser(t *testing.T) {
	users := []Identity{alice, bob}
	all := []Message{confirmedMsg(1, alice, bob, "hi", time.Now())}

	for _, query := range []string{"", "ali"} {
		for _, s := range ProjectDirectory(users, all, alice, query) {
			assert.False(t, s.Peer.Is(alice), "query %q listed the current user", query)
		}
	}
}
