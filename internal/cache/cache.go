package cache

import (
	"strings"
	"sync"
	"time"
)

// Store implementa um cache em memória com TTL por entrada. O relógio é
// injetável para testes determinísticos.
type Store[V any] struct {
	mu        sync.RWMutex
	values    map[string]V
	updatedAt map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewStore cria um novo cache com TTL. TTL zero ou negativo desabilita a
// expiração.
func NewStore[V any](ttl time.Duration) *Store[V] {
	return &Store[V]{
		values:    make(map[string]V),
		updatedAt: make(map[string]time.Time),
		ttl:       ttl,
		now:       time.Now,
	}
}

// NewStoreWithClock cria um cache com relógio injetado.
func NewStoreWithClock[V any](ttl time.Duration, now func() time.Time) *Store[V] {
	store := NewStore[V](ttl)
	if now != nil {
		store.now = now
	}
	return store
}

// Get retorna o valor da chave se presente e não expirado.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero V
	value, ok := s.values[key]
	if !ok {
		return zero, false
	}
	if s.isExpiredLocked(key) {
		return zero, false
	}
	return value, true
}

// Set armazena o valor e renova o carimbo de atualização.
func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	s.updatedAt[key] = s.now()
}

// Invalidate remove uma chave específica.
func (s *Store[V]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	delete(s.updatedAt, key)
}

// InvalidatePrefix remove todas as chaves que começam com o prefixo.
func (s *Store[V]) InvalidatePrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			delete(s.values, key)
			delete(s.updatedAt, key)
		}
	}
}

// Reset descarta todas as entradas.
func (s *Store[V]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]V)
	s.updatedAt = make(map[string]time.Time)
}

// UpdatedAt retorna quando a chave foi gravada pela última vez.
func (s *Store[V]) UpdatedAt(key string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.updatedAt[key]
}

func (s *Store[V]) isExpiredLocked(key string) bool {
	if s.ttl <= 0 {
		return false
	}
	t, ok := s.updatedAt[key]
	if !ok {
		return true
	}
	return s.now().Sub(t) > s.ttl
}
