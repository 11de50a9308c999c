package dispatcher

import (
	"container/list"
	"context"
	"sync"
	"time"

	"HeadTurner/internal/entity"
)

// Entry is never mutated after it is handed to a Store. A recomputation
// replaces it with a new Entry.
type Entry struct {
	Key       string            `json:"key"`
	Result    entity.PoseResult `json:"result"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

func (e *Entry) TTL() time.Duration {
	return e.ExpiresAt.Sub(e.CreatedAt)
}

// Store holds entries by key. Get returns entries whether or not they have
// expired; the dispatcher decides freshness with its own clock.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that can drop expired entries in bulk.
type Sweeper interface {
	Sweep(now time.Time) int
}

// MemoryStore is a process-wide map of entries. With a positive capacity
// the oldest inserted entry is evicted first.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 0 {
		capacity = 0
	}

	return &MemoryStore{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*Entry), true
}

func (s *MemoryStore) Set(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[entry.Key]; ok {
		s.order.Remove(el)
		delete(s.items, entry.Key)
	}

	for s.capacity > 0 && len(s.items) >= s.capacity {
		oldest := s.order.Front()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*Entry).Key)
	}

	s.items[entry.Key] = s.order.PushBack(entry)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		s.order.Remove(el)
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, el := range s.items {
		if el.Value.(*Entry).Expired(now) {
			s.order.Remove(el)
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// TieredStore reads the local tier first and falls back to a shared tier,
// copying shared hits into the local one.
type TieredStore struct {
	local  Store
	shared Store
}

func NewTieredStore(local, shared Store) *TieredStore {
	return &TieredStore{local: local, shared: shared}
}

func (t *TieredStore) Get(ctx context.Context, key string) (*Entry, bool) {
	if e, ok := t.local.Get(ctx, key); ok {
		return e, true
	}

	e, ok := t.shared.Get(ctx, key)
	if !ok {
		return nil, false
	}
	_ = t.local.Set(ctx, e)
	return e, true
}

func (t *TieredStore) Set(ctx context.Context, entry *Entry) error {
	if err := t.local.Set(ctx, entry); err != nil {
		return err
	}
	return t.shared.Set(ctx, entry)
}

func (t *TieredStore) Delete(ctx context.Context, key string) error {
	if err := t.local.Delete(ctx, key); err != nil {
		return err
	}
	return t.shared.Delete(ctx, key)
}

func (t *TieredStore) Sweep(now time.Time) int {
	if s, ok := t.local.(Sweeper); ok {
		return s.Sweep(now)
	}
	return 0
}
