// Package pending files uploaded images under an operator-chosen owner key
// until a recipient claims them through the conversation flow. Storage is
// in-memory only and lost on restart.
package pending

import (
	"sync"
	"time"
)

// Image is one filed photo awaiting retrieval.
type Image struct {
	OwnerKey string
	Data     []byte
	Mime     string
	StoredAt time.Time
}

// Store is the pending-image repository. Put with an existing key overwrites
// the earlier image. Take claims and removes in one step.
type Store interface {
	Put(img Image)
	Take(ownerKey string) (Image, bool)
	Peek(ownerKey string) (Image, bool)
}

// MemoryStore is a concurrency-safe in-process Store. Ordering between a
// concurrent overwrite and a concurrent claim of the same key is not defined;
// each individual operation is atomic.
type MemoryStore struct {
	mu       sync.Mutex
	images   map[string]Image
	ttl      time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		images: make(map[string]Image),
		ttl:    ttl,
		done:   make(chan struct{}),
	}
	if ttl > 0 {
		go s.sweep()
	}
	return s
}

func (s *MemoryStore) Put(img Image) {
	if img.StoredAt.IsZero() {
		img.StoredAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[img.OwnerKey] = img
}

func (s *MemoryStore) Take(ownerKey string) (Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[ownerKey]
	if !ok || s.expired(img.StoredAt, time.Now()) {
		delete(s.images, ownerKey)
		return Image{}, false
	}
	delete(s.images, ownerKey)
	return img, true
}

func (s *MemoryStore) Peek(ownerKey string) (Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[ownerKey]
	if !ok || s.expired(img.StoredAt, time.Now()) {
		return Image{}, false
	}
	return img, true
}

func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

func (s *MemoryStore) expired(storedAt, now time.Time) bool {
	return s.ttl > 0 && now.Sub(storedAt) > s.ttl
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
			for key, img := range s.images {
				if s.expired(img.StoredAt, now) {
					delete(s.images, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
