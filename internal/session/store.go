// Package session tracks the ephemeral per-contact pending action: a
// contact whose check-in or check-out was approved and who is expected
// to reply with a location next.
package session

import (
	"sync"

	"checador-bot/internal/models"
)

// Store keeps at most one pending action per phone. Arming a new one
// overwrites any prior pending action for that phone. It also hands out
// a per-phone lock so a contact's messages are handled one at a time.
type Store struct {
	mu      sync.Mutex
	pending map[string]models.ContactSession
	locks   map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		pending: make(map[string]models.ContactSession),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Acquire takes the phone's handling lock and returns the release
// function. Two messages from the same contact are serialized; messages
// from different contacts proceed concurrently.
func (s *Store) Acquire(phone string) func() {
	s.mu.Lock()
	l, ok := s.locks[phone]
	if !ok {
		l = &sync.Mutex{}
		s.locks[phone] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Arm records an approved pending action for the phone.
func (s *Store) Arm(phone string, action models.LogType, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[phone] = models.ContactSession{Pending: action, Code: code}
}

func (s *Store) Get(phone string) (models.ContactSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.pending[phone]
	return sess, ok
}

func (s *Store) Clear(phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, phone)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
