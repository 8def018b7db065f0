// Package uxflags holds the session-wide UX behavior switches.
package uxflags

import (
	"sync"

	"github.com/nhle/finpal/internal/model"
)

// Flags is a concurrency-safe UXFlags value that changes only through
// merge updates.
type Flags struct {
	mu   sync.RWMutex
	cur  model.UXFlags
	subs map[int]func(model.UXFlags)
	next int
}

// New returns a store initialized with initial.
func New(initial model.UXFlags) *Flags {
	return &Flags{
		cur:  initial,
		subs: make(map[int]func(model.UXFlags)),
	}
}

// Get returns the current flags.
func (f *Flags) Get() model.UXFlags {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cur
}

// Update merges patch into the current flags and returns the result.
// Subscribers are notified only when a value actually changed.
func (f *Flags) Update(patch model.UXFlagsPatch) model.UXFlags {
	f.mu.Lock()
	prev := f.cur
	f.cur = patch.Apply(f.cur)
	next := f.cur
	subs := make([]func(model.UXFlags), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	if next != prev {
		for _, fn := range subs {
			fn(next)
		}
	}
	return next
}

// Subscribe registers fn for flag changes and returns its removal func.
func (f *Flags) Subscribe(fn func(model.UXFlags)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	f.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
		})
	}
}
