// Package memory provides a map-backed Store with lazy TTL expiry.
// Suitable for tests and single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	st "github.com/unkn0wn-root/mutcache/store"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type Store struct {
	mu sync.RWMutex
	m  map[string]entry
}

var _ st.Store = (*Store)(nil)

func New() *Store { return &Store{m: make(map[string]entry)} }

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		s.mu.Lock()
		// recheck under write lock; someone may have replaced the entry
		if cur, ok := s.m[key]; ok && !cur.exp.IsZero() && time.Now().After(cur.exp) {
			delete(s.m, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.v, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.m[key] = entry{v: value, exp: exp}
	s.mu.Unlock()
	return true, nil
}

func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Close(_ context.Context) error { return nil }

// Len reports resident entries, expired or not. Intended for tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
