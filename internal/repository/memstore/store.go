package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"portfolio/internal/repository"
)

// Store keeps everything in process memory. Contents are lost on restart.
type Store struct {
	mu    sync.RWMutex
	items map[string][]byte
	logs  map[string][]string
}

func New() *Store {
	return &Store{items: map[string][]byte{}, logs: map[string][]string{}}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	_ = ctx
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(v), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_ = ctx
	if err := repository.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	s.items[key] = clone(value)
	s.mu.Unlock()
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) AppendLog(ctx context.Context, stream, line string) error {
	_ = ctx
	s.mu.Lock()
	s.logs[stream] = append(s.logs[stream], line)
	s.mu.Unlock()
	return nil
}

func (s *Store) ReadLog(ctx context.Context, stream string, limit int) ([]string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := s.logs[stream]
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
