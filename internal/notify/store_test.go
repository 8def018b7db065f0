package notify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/finpal/internal/model"
	"github.com/nhle/finpal/tests/testutil"
)

func TestStorePrependKeepsNewestFirst(t *testing.T) {
	s := NewStore(nil)
	for i := 0; i < 5; i++ {
		require.True(t, s.Prepend(testutil.NewNotification(fmt.Sprintf("n%d", i), model.AgentLuna, i)))
	}

	list := s.Notifications()
	require.Len(t, list, 5)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].Timestamp.After(list[i].Timestamp),
			"entry %d should be newer than entry %d", i-1, i)
	}
	head, ok := s.Head()
	require.True(t, ok)
	assert.Equal(t, "n4", head.ID)
	assert.Equal(t, 5, s.UnreadCount())
}

func TestStoreRejectsDuplicateIDs(t *testing.T) {
	s := NewStore(nil)
	require.True(t, s.Prepend(testutil.NewNotification("n1", model.AgentLuna, 0)))
	assert.False(t, s.Prepend(testutil.NewNotification("n1", model.AgentLuna, 1)))
	assert.False(t, s.Inject(testutil.NewNotification("n1", model.AgentLuna, 2)))
	assert.Equal(t, 1, s.Len())
}

func TestStoreDismissedIDStaysReserved(t *testing.T) {
	s := NewStore(nil)
	s.Prepend(testutil.NewNotification("n1", model.AgentLuna, 0))
	require.True(t, s.Dismiss("n1"))
	assert.False(t, s.Prepend(testutil.NewNotification("n1", model.AgentLuna, 0)))
	assert.Equal(t, 0, s.Len())
}

func TestStoreMarkAsReadIsIdempotent(t *testing.T) {
	s := NewStore(nil)
	s.Prepend(testutil.NewNotification("n1", model.AgentLuna, 0))
	s.Prepend(testutil.NewNotification("n2", model.AgentLuna, 1))

	require.True(t, s.MarkAsRead("n1"))
	once := s.Snapshot()

	assert.False(t, s.MarkAsRead("n1"))
	assert.Equal(t, once, s.Snapshot())
	assert.Equal(t, 1, s.UnreadCount())

	assert.False(t, s.MarkAsRead("missing"))
}

func TestStoreMarkAllAsRead(t *testing.T) {
	s := NewStore(nil)
	for i := 0; i < 5; i++ {
		s.Prepend(testutil.NewNotification(fmt.Sprintf("n%d", i), model.AgentLuna, i))
	}
	s.MarkAsRead("n0")
	s.MarkAsRead("n3")
	require.Equal(t, 3, s.UnreadCount())

	assert.Equal(t, 3, s.MarkAllAsRead())
	assert.Equal(t, 0, s.UnreadCount())
	for _, n := range s.Notifications() {
		assert.True(t, n.IsRead, "notification %s should be read", n.ID)
	}
	assert.Len(t, s.Notifications(), 5)
}

func TestStoreDismissAndClearAll(t *testing.T) {
	s := NewStore(nil)
	s.Prepend(testutil.NewNotification("n1", model.AgentLuna, 0))
	s.Prepend(testutil.NewNotification("n2", model.AgentLuna, 1))
	s.Prepend(testutil.NewNotification("n3", model.AgentLuna, 2))

	require.True(t, s.Dismiss("n2"))
	assert.False(t, s.Dismiss("n2"))

	ids := []string{}
	for _, n := range s.Notifications() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"n3", "n1"}, ids)

	s.ClearAll()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.UnreadCount())
	_, ok := s.Head()
	assert.False(t, ok)
}

func TestStoreUnreadCountMatchesEntries(t *testing.T) {
	s := NewStore(nil)
	ops := []func(){
		func() { s.Prepend(testutil.NewNotification("a", model.AgentLuna, 0)) },
		func() { s.Prepend(testutil.NewNotification("b", model.AgentLuna, 1)) },
		func() { s.MarkAsRead("a") },
		func() { s.Prepend(testutil.NewNotification("c", model.AgentLuna, 2)) },
		func() { s.Dismiss("b") },
		func() { s.MarkAllAsRead() },
		func() { s.Prepend(testutil.NewNotification("d", model.AgentLuna, 3)) },
	}

	for i, op := range ops {
		op()
		snap := s.Snapshot()
		unread := 0
		for _, n := range snap.Notifications {
			if !n.IsRead {
				unread++
			}
		}
		assert.Equal(t, unread, snap.UnreadCount, "after op %d", i)
		assert.Equal(t, unread, s.UnreadCount(), "after op %d", i)
	}
}

func TestStoreSubscribersSeeEveryChange(t *testing.T) {
	s := NewStore(nil)

	var seen []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		seen = append(seen, snap)
	})

	s.Prepend(testutil.NewNotification("n1", model.AgentLuna, 0))
	s.MarkAsRead("n1")
	s.MarkAsRead("n1") // no change, no publish
	s.Prepend(testutil.NewNotification("n2", model.AgentLuna, 1))

	require.Len(t, seen, 3)
	assert.Equal(t, 1, seen[0].UnreadCount)
	assert.Equal(t, 0, seen[1].UnreadCount)
	head, ok := seen[2].Head()
	require.True(t, ok)
	assert.Equal(t, "n2", head.ID)

	unsubscribe()
	unsubscribe()
	s.ClearAll()
	assert.Len(t, seen, 3)
}
