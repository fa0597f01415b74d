package router

import (
	"slices"
	"sync"
)

// MemoryLocation is an in-process Location. Like a browser hash, setting a
// different fragment notifies every subscriber, including changes made by
// the subscriber itself.
type MemoryLocation struct {
	mu       sync.Mutex
	fragment string
	subs     []memorySub
	nextSub  int
}

type memorySub struct {
	id int
	fn func(string)
}

// NewMemoryLocation returns a location holding fragment.
func NewMemoryLocation(fragment string) *MemoryLocation {
	return &MemoryLocation{fragment: Normalize(fragment)}
}

func (l *MemoryLocation) Fragment() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fragment
}

// SetFragment stores fragment and notifies subscribers if it changed.
func (l *MemoryLocation) SetFragment(fragment string) error {
	fragment = Normalize(fragment)
	l.mu.Lock()
	if fragment == l.fragment {
		l.mu.Unlock()
		return nil
	}
	l.fragment = fragment
	subs := slices.Clone(l.subs)
	l.mu.Unlock()

	for _, s := range subs {
		s.fn(fragment)
	}
	return nil
}

func (l *MemoryLocation) Subscribe(fn func(fragment string)) (unsubscribe func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextSub
	l.nextSub++
	l.subs = append(l.subs, memorySub{id: id, fn: fn})
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.subs = slices.DeleteFunc(l.subs, func(s memorySub) bool { return s.id == id })
	}
}
