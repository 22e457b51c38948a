package store

import (
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store, used by tests.
type Memory struct {
	mu    sync.RWMutex
	items map[ID]Product
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[ID]Product)}
}

func (m *Memory) Save(product Product) (ID, error) {
	id := uuid.New()
	m.mu.Lock()
	m.items[id] = product
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) Get(id ID) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.items[id]
	if !ok {
		return Product{}, &NotFoundError{ID: id}
	}
	return p, nil
}

func (m *Memory) Has(id ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[id]
	return ok
}

// NotFoundError reports a Get against an id the store has never seen.
type NotFoundError struct {
	ID ID
}

func (e *NotFoundError) Error() string {
	return "store: product not found: " + e.ID.String()
}
