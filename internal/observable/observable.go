// Package observable provides small value containers that notify
// registered callbacks whenever their value is replaced.
package observable

import "sync"

// Readable is the read side of an observable value.
type Readable[T any] interface {
	// Get returns the current value.
	Get() T

	// Subscribe registers fn and calls it immediately with the current
	// value. The returned function removes the subscription.
	Subscribe(fn func(T)) (unsubscribe func())
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Store holds a value of type T and publishes every replacement to its
// subscribers. Callbacks run synchronously on the goroutine that called
// Set or Update, in registration order, after the value lock is
// released. Publications are serialized, so subscribers see values in
// the order they were set and the last value delivered is the current
// one. A callback must not Set, Update or Subscribe to the store that
// is calling it.
type Store[T any] struct {
	// pubMu is held from the write through the last callback.
	pubMu sync.Mutex

	mu     sync.Mutex
	value  T
	subs   []subscriber[T]
	nextID uint64
}

// New creates a Store holding initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{value: initial}
}

// Get returns the current value.
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the value and notifies subscribers.
func (s *Store[T]) Set(v T) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	s.value = v
	subs := s.snapshot()
	s.mu.Unlock()

	publish(subs, v)
}

// Update replaces the value with fn(current) and notifies subscribers.
// fn runs under the store lock and must not call back into the store.
func (s *Store[T]) Update(fn func(T) T) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	v := fn(s.value)
	s.value = v
	subs := s.snapshot()
	s.mu.Unlock()

	publish(subs, v)
}

// Subscribe registers fn, calls it once with the current value and
// returns a function that removes the registration.
func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	v := s.value
	s.mu.Unlock()

	fn(v)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Store[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// snapshot copies the subscriber list. Caller must hold s.mu.
func (s *Store[T]) snapshot() []subscriber[T] {
	out := make([]subscriber[T], len(s.subs))
	copy(out, s.subs)
	return out
}

func publish[T any](subs []subscriber[T], v T) {
	for _, sub := range subs {
		sub.fn(v)
	}
}
