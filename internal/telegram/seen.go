// ABOUTME: Bounded set of recently recorded update ids
// ABOUTME: Lets the recorder skip updates Telegram delivers more than once

package telegram

import (
	"container/list"
	"sync"
	"time"
)

type seenEntry struct {
	at      time.Time
	element *list.Element
}

// seenUpdates remembers update ids for ttl, holding at most maxSize of them.
// Expired ids are dropped lazily; the oldest id is evicted when full.
type seenUpdates struct {
	mu      sync.Mutex
	ids     map[int]*seenEntry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newSeenUpdates(ttl time.Duration, maxSize int) *seenUpdates {
	return &seenUpdates{
		ids:     make(map[int]*seenEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// has reports whether id was marked within the last ttl
func (s *seenUpdates) has(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	_, ok := s.ids[id]
	return ok
}

// mark records id as seen now
func (s *seenUpdates) mark(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.ids[id]; ok {
		entry.at = now
		s.order.MoveToBack(entry.element)
		return
	}

	if len(s.ids) >= s.maxSize {
		s.removeLocked(s.order.Front())
	}

	s.ids[id] = &seenEntry{at: now, element: s.order.PushBack(id)}
}

// expireLocked drops ids older than ttl. Entries are ordered by mark time,
// so it stops at the first live one.
func (s *seenUpdates) expireLocked() {
	cutoff := s.now().Add(-s.ttl)
	for front := s.order.Front(); front != nil; front = s.order.Front() {
		if s.ids[front.Value.(int)].at.After(cutoff) {
			return
		}
		s.removeLocked(front)
	}
}

func (s *seenUpdates) removeLocked(e *list.Element) {
	if e == nil {
		return
	}
	s.order.Remove(e)
	delete(s.ids, e.Value.(int))
}

func (s *seenUpdates) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}
