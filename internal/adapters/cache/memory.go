package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/okian/qualtrack/pkg/metrics"
)

const defaultMaxEntries = 500

// Option configures the memory tier.
type Option func(*Memory)

// WithMaxEntries bounds the number of entries; the oldest write is evicted first.
func WithMaxEntries(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.max = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

type memEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// Memory is a bounded in-process cache.
type Memory struct {
	mu    sync.Mutex
	max   int
	items map[string]*list.Element
	order *list.List // front = oldest write
	now   func() time.Time
}

// NewMemory constructs an empty memory tier.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		max:   defaultMaxEntries,
		items: make(map[string]*list.Element),
		order: list.New(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		metrics.RecordCacheMiss("memory")
		return nil, ErrCacheMiss
	}
	e := el.Value.(*memEntry)
	if !m.now().Before(e.expiresAt) {
		m.order.Remove(el)
		delete(m.items, key)
		metrics.RecordCacheMiss("memory")
		return nil, ErrCacheMiss
	}
	metrics.RecordCacheHit("memory")
	return e.value, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.put(key, value, m.now().Add(ttl))
	return nil
}

func (m *Memory) put(key string, value []byte, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		m.order.Remove(el)
	}
	m.items[key] = m.order.PushBack(&memEntry{key: key, value: value, expiresAt: expiresAt})
	for m.order.Len() > m.max {
		oldest := m.order.Front()
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*memEntry).key)
	}
	metrics.RecordCacheWrite("memory")
}

// Clear implements Cache.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.order.Init()
	return nil
}

// Len returns the number of entries held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
