// Package notify keeps the transient messages shown to the user.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/mailcow-companion/internal/observable"
)

// Kind classifies a notification for display.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// DefaultTimeout is how long a notification stays visible unless removed.
const DefaultTimeout = 30 * time.Second

// Notification is a single user-facing message.
type Notification struct {
	// ID is unique within the process.
	ID string

	Message string
	Kind    Kind

	// Timeout is the delay before automatic removal. Zero means the
	// notification stays until removed.
	Timeout time.Duration

	CreatedAt time.Time
}

// Store is an ordered list of notifications, oldest first.
type Store struct {
	list *observable.Store[[]Notification]

	mu      sync.Mutex
	timers  map[string]*time.Timer
	timeout time.Duration
}

// NewStore creates an empty Store. defaultTimeout is used by Info,
// Success and Error; a non-positive value selects DefaultTimeout.
func NewStore(defaultTimeout time.Duration) *Store {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Store{
		list:    observable.New([]Notification{}),
		timers:  make(map[string]*time.Timer),
		timeout: defaultTimeout,
	}
}

// Add appends a notification and returns its ID. If timeout is positive
// the notification is removed automatically once it elapses.
func (s *Store) Add(message string, kind Kind, timeout time.Duration) string {
	if timeout < 0 {
		timeout = 0
	}

	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		Timeout:   timeout,
		CreatedAt: time.Now(),
	}

	s.list.Update(func(cur []Notification) []Notification {
		next := make([]Notification, 0, len(cur)+1)
		next = append(next, cur...)
		return append(next, n)
	})

	if timeout > 0 {
		s.mu.Lock()
		s.timers[n.ID] = time.AfterFunc(timeout, func() {
			s.expire(n.ID)
		})
		s.mu.Unlock()
	}

	return n.ID
}

// Info adds an info notification with the default timeout.
func (s *Store) Info(message string) string {
	return s.Add(message, KindInfo, s.timeout)
}

// Success adds a success notification with the default timeout.
func (s *Store) Success(message string) string {
	return s.Add(message, KindSuccess, s.timeout)
}

// Error adds an error notification with the default timeout.
func (s *Store) Error(message string) string {
	return s.Add(message, KindError, s.timeout)
}

// Remove deletes the notification with id and cancels its expiry.
// Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.drop(id)
}

func (s *Store) expire(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	s.drop(id)
}

func (s *Store) drop(id string) {
	s.list.Update(func(cur []Notification) []Notification {
		next := make([]Notification, 0, len(cur))
		for _, n := range cur {
			if n.ID != id {
				next = append(next, n)
			}
		}
		return next
	})
}

// List returns the current notifications, oldest first.
func (s *Store) List() []Notification {
	return s.list.Get()
}

// Subscribe registers fn for list changes.
func (s *Store) Subscribe(fn func([]Notification)) func() {
	return s.list.Subscribe(fn)
}

// Close stops all pending expiry timers. Notifications already in the
// list are kept.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
