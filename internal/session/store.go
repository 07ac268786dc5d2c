package session

import (
	"sync"
	"time"
)

// MemoryStore is a concurrency-safe in-process Store. A TTL of zero keeps
// sessions for the life of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	locks    map[string]*sync.Mutex
	ttl      time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]Session),
		locks:    make(map[string]*sync.Mutex),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go s.sweep()
	}
	return s
}

func (s *MemoryStore) Get(senderID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[senderID]
	if !ok {
		return Session{}, false
	}
	if s.expired(sess.UpdatedAt, time.Now()) {
		return Session{}, false
	}
	return sess, true
}

func (s *MemoryStore) Put(sess Session) {
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SenderID] = sess
}

// Acquire blocks until the per-sender lock is held and returns its release
// func. Locks are created lazily and never removed; the key space is bounded
// by the set of distinct senders.
func (s *MemoryStore) Acquire(senderID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[senderID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[senderID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Close stops the TTL janitor, if running.
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *MemoryStore) expired(updatedAt, now time.Time) bool {
	return s.ttl > 0 && now.Sub(updatedAt) > s.ttl
}

func (s *MemoryStore) sweep() {
	interval := s.ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, sess := range s.sessions {
				if s.expired(sess.UpdatedAt, now) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
