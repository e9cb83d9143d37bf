// Package idempotency replays responses to repeated state-changing requests
// so a retried POST does not submit a second transaction.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// Record holds a stored response.
type Record struct {
	StatusCode int
	Response   []byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Store abstracts idempotency persistence.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Save(ctx context.Context, key string, record Record) error
}

// MemoryStore keeps records for the life of the process. Expired records are
// dropped lazily on Get and swept on Save.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Record
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Record),
		now:  time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	if m.now().After(rec.ExpiresAt) {
		delete(m.data, key)
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, rec := range m.data {
		if now.After(rec.ExpiresAt) {
			delete(m.data, k)
		}
	}
	m.data[key] = record
	return nil
}

// Len reports how many records are held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
