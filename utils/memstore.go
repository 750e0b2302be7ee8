package utils

import (
	"sync"
	"time"
)

const sweepInterval = time.Minute

// expiringSet is the single-instance fallback used when Redis is not configured.
// Expired keys are dropped lazily and by a sweep that runs at most once per sweepInterval.
type expiringSet struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	now       func() time.Time
	lastSweep time.Time
}

func newExpiringSet() *expiringSet {
	return &expiringSet{entries: map[string]time.Time{}, now: time.Now}
}

// add stores key until ttl elapses. It returns false if key was already present.
func (s *expiringSet) add(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		s.sweepLocked(now)
		s.lastSweep = now
	}
	if exp, ok := s.entries[key]; ok && now.Before(exp) {
		return false
	}
	s.entries[key] = now.Add(ttl)
	return true
}

func (s *expiringSet) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[key]
	if !ok {
		return false
	}
	if !s.now().Before(exp) {
		delete(s.entries, key)
		return false
	}
	return true
}

func (s *expiringSet) sweepLocked(now time.Time) {
	for k, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, k)
		}
	}
}
