package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// MemoryStore is an in-memory fiber.Storage with FIFO eviction.
// Thread-safe and suitable for single-instance deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]*memoryEntry
	order     []string // insertion order, for FIFO eviction
	opts      Options
	evictions int64

	stopCh    chan struct{}
	closeOnce sync.Once
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
	createdAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

var _ fiber.Storage = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	options := applyOptions(opts...)

	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		order:   make([]string, 0),
		opts:    options,
		stopCh:  make(chan struct{}),
	}

	if options.CleanupInterval > 0 {
		go s.startCleanup()
	}

	return s
}

// Get returns the value stored under key, or nil when it is missing or
// expired.
func (s *MemoryStore) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}

	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	// expired entries are left for cleanup
	if !exists || entry.expired(time.Now()) {
		return nil, nil
	}
	return entry.value, nil
}

// Set stores val under key. A zero exp means the entry never expires.
func (s *MemoryStore) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}

	now := time.Now()
	entry := &memoryEntry{value: val, createdAt: now}
	if exp > 0 {
		entry.expiresAt = now.Add(exp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.entries[key]
	s.entries[key] = entry
	if !exists {
		s.order = append(s.order, key)
	}
	s.enforceLimitLocked()
	return nil
}

// Delete removes key.
func (s *MemoryStore) Delete(key string) error {
	if key == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		delete(s.entries, key)
		s.removeFromOrder(key)
	}
	return nil
}

// Reset removes every entry.
func (s *MemoryStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*memoryEntry)
	s.order = make([]string, 0)
	return nil
}

// Close stops the background cleanup goroutine. It is safe to call more
// than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() { close(s.stopCh) })
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns store statistics.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	expired := int64(0)
	for _, entry := range s.entries {
		if entry.expired(now) {
			expired++
		}
	}

	return Stats{
		Entries:        int64(len(s.entries)),
		ExpiredEntries: expired,
		MaxEntries:     s.opts.MaxEntries,
		Evictions:      s.evictions,
		Backend:        "memory",
		Cleanup:        s.opts.CleanupInterval,
	}
}

// enforceLimitLocked evicts oldest entries if max is exceeded. Must hold write lock.
func (s *MemoryStore) enforceLimitLocked() {
	if s.opts.MaxEntries <= 0 {
		return
	}

	for int64(len(s.entries)) > s.opts.MaxEntries && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
		s.evictions++
	}
}

func (s *MemoryStore) removeFromOrder(key string) {
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *MemoryStore) startCleanup() {
	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup removes up to CleanupBatchSize expired entries, oldest first.
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expired := make([]string, 0)
	for key, entry := range s.entries {
		if entry.expired(now) {
			expired = append(expired, key)
			if len(expired) >= s.opts.CleanupBatchSize {
				break
			}
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		return s.entries[expired[i]].createdAt.Before(s.entries[expired[j]].createdAt)
	})

	for _, key := range expired {
		delete(s.entries, key)
		s.removeFromOrder(key)
	}
}
