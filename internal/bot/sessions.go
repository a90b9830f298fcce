package bot

import (
	"sync"
	"time"
)

type session struct {
	username  string
	updatedAt time.Time
}

// Sessions remembers the profile each chat is currently looking at
type Sessions struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	chats map[int64]session
}

// NewSessions creates a store. A ttl of zero keeps entries forever.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl:   ttl,
		now:   time.Now,
		chats: make(map[int64]session),
	}
}

// Set records the current profile of a chat
func (s *Sessions) Set(chatID int64, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[chatID] = session{username: username, updatedAt: s.now()}
}

// Get returns the current profile of a chat
func (s *Sessions) Get(chatID int64) (string, bool) {
	s.mu.RLock()
	sess, ok := s.chats[chatID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if s.ttl > 0 && s.now().Sub(sess.updatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.chats, chatID)
		s.mu.Unlock()
		return "", false
	}
	return sess.username, true
}

// Len returns the number of chats with a current profile
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}
