package store

import (
	"context"
	"sync"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

// MemoryBackend keeps nothing beyond the id counter and the set of live
// ids; the Store itself holds the documents.
type MemoryBackend struct {
	next atomic.Uint64
	mu   sync.Mutex
	live map[uint64]struct{}
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{live: make(map[uint64]struct{})}
}

func (m *MemoryBackend) Insert(_ context.Context, _ NewDocument) (uint64, error) {
	id := m.next.Add(1)
	m.mu.Lock()
	m.live[id] = struct{}{}
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryBackend) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live[id]; !ok {
		return apperrors.NotFound(id)
	}
	delete(m.live, id)
	return nil
}

func (m *MemoryBackend) Load(_ context.Context, _ func(Document) error) error {
	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
