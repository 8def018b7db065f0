package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/finpal/internal/model"
)

// Snapshot is an immutable view of the store published to subscribers.
type Snapshot struct {
	Notifications []model.Notification
	UnreadCount   int
}

// Head returns the most recent notification, if any.
func (s Snapshot) Head() (model.Notification, bool) {
	if len(s.Notifications) == 0 {
		return model.Notification{}, false
	}
	return s.Notifications[0], true
}

// Store is the ordered, newest-first notification log. Ids are unique for
// the store's lifetime: inserting an id that is already present is a no-op.
//
// Subscribers are called synchronously, in mutation order, after every
// mutation that changed state. They must not call back into the store's
// mutating methods.
type Store struct {
	pubMu sync.Mutex // serializes publication so subscribers see mutation order
	mu    sync.RWMutex
	items []model.Notification
	ids   map[string]struct{}
	subs  map[int]func(Snapshot)
	next  int
	log   *zap.Logger
}

// NewStore creates an empty store.
func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		ids:  make(map[string]struct{}),
		subs: make(map[int]func(Snapshot)),
		log:  log,
	}
}

// Prepend inserts n at the head. It returns false when a notification
// with the same id is already stored.
func (s *Store) Prepend(n model.Notification) bool {
	return s.mutate(func() bool {
		if _, dup := s.ids[n.ID]; dup {
			s.log.Debug("dropping duplicate notification", zap.String("id", n.ID))
			return false
		}
		s.ids[n.ID] = struct{}{}
		s.items = append(s.items, model.Notification{})
		copy(s.items[1:], s.items)
		s.items[0] = n
		return true
	})
}

// Inject is Prepend for locally originated copies (optimistic demo
// triggers). It follows the same id-uniqueness rule.
func (s *Store) Inject(n model.Notification) bool {
	return s.Prepend(n)
}

// MarkAsRead flags the notification with id as read. Unknown ids and
// already-read notifications are left untouched.
func (s *Store) MarkAsRead(id string) bool {
	return s.mutate(func() bool {
		for i := range s.items {
			if s.items[i].ID != id {
				continue
			}
			if s.items[i].IsRead {
				return false
			}
			s.items[i].IsRead = true
			return true
		}
		return false
	})
}

// MarkAllAsRead flags every notification as read and returns how many
// changed.
func (s *Store) MarkAllAsRead() int {
	changed := 0
	s.mutate(func() bool {
		for i := range s.items {
			if !s.items[i].IsRead {
				s.items[i].IsRead = true
				changed++
			}
		}
		return changed > 0
	})
	return changed
}

// Dismiss permanently removes the notification with id. The id stays
// reserved so a late duplicate delivery does not resurrect it.
func (s *Store) Dismiss(id string) bool {
	return s.mutate(func() bool {
		for i := range s.items {
			if s.items[i].ID == id {
				s.items = append(s.items[:i], s.items[i+1:]...)
				return true
			}
		}
		return false
	})
}

// ClearAll empties the list.
func (s *Store) ClearAll() {
	s.mutate(func() bool {
		if len(s.items) == 0 {
			return false
		}
		s.items = nil
		return true
	})
}

// Notifications returns a copy of the list, newest first.
func (s *Store) Notifications() []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyItems()
}

// Head returns the most recent notification, if any.
func (s *Store) Head() (model.Notification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return model.Notification{}, false
	}
	return s.items[0], true
}

// Len returns the number of stored notifications.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// UnreadCount counts notifications that are not read yet.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread()
}

// Snapshot returns the current list and unread count.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Notifications: s.copyItems(), UnreadCount: s.unread()}
}

// Subscribe registers fn for every state change and returns a function
// that removes the registration.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	id := s.next
	s.next++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.pubMu.Lock()
			defer s.pubMu.Unlock()
			delete(s.subs, id)
		})
	}
}

// mutate applies fn under the write lock and publishes a snapshot when fn
// reports a change.
func (s *Store) mutate(fn func() bool) bool {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	changed := fn()
	var snap Snapshot
	if changed {
		snap = Snapshot{Notifications: s.copyItems(), UnreadCount: s.unread()}
	}
	s.mu.Unlock()

	if changed {
		for _, sub := range s.subs {
			sub(snap)
		}
	}
	return changed
}

func (s *Store) copyItems() []model.Notification {
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) unread() int {
	count := 0
	for _, n := range s.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}
