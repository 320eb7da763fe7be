// Package respcache remembers the canonical response bytes served for
// a (client, key, uri) triple so the conditional labels endpoint can
// answer 304 when nothing changed.
package respcache

import (
	"container/list"
	"context"
	"sync"
)

// DefaultCapacity bounds the in-memory cache.
const DefaultCapacity = 4096

// Key identifies one cached response.
type Key struct {
	ClientID int64
	KeyID    int64
	URI      string
}

// Cache is the lookup used by the labels endpoint.
type Cache interface {
	Get(ctx context.Context, key Key) ([]byte, bool)
	Put(ctx context.Context, key Key, body []byte)
}

// Memory is a mutex-guarded LRU cache.
type Memory struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[Key]*list.Element
}

type memoryEntry struct {
	key  Key
	body []byte
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[Key]*list.Element, capacity),
	}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	element, ok := m.items[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(element)
	return element.Value.(*memoryEntry).body, true
}

func (m *Memory) Put(_ context.Context, key Key, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if element, ok := m.items[key]; ok {
		element.Value.(*memoryEntry).body = body
		m.order.MoveToFront(element)
		return
	}

	element := m.order.PushFront(&memoryEntry{key: key, body: body})
	m.items[key] = element

	if m.order.Len() > m.capacity {
		oldest := m.order.Back()
		if oldest != nil {
			m.order.Remove(oldest)
			delete(m.items, oldest.Value.(*memoryEntry).key)
		}
	}
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
