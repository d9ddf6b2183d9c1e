// Package cache provides the in-memory store behind per-client request
// counters. MemoryStore implements fiber.Storage, so any fiber middleware
// that accepts a Storage can use it.
package cache

import "time"

// Stats describes the store's current contents.
type Stats struct {
	Entries        int64         `json:"entries"`
	ExpiredEntries int64         `json:"expired_entries"`
	MaxEntries     int64         `json:"max_entries,omitempty"`
	Evictions      int64         `json:"evictions"`
	Backend        string        `json:"backend"`
	Cleanup        time.Duration `json:"cleanup_interval"`
}

// Options configures a MemoryStore.
type Options struct {
	// MaxEntries limits the number of entries. 0 means unlimited.
	// When exceeded, oldest entries are evicted (FIFO).
	MaxEntries int64

	// CleanupInterval is how often expired entries are removed. Default: 1 minute.
	// Set to 0 to disable background cleanup.
	CleanupInterval time.Duration

	// CleanupBatchSize is how many entries to delete per cleanup cycle. Default: 1000.
	CleanupBatchSize int
}

// DefaultOptions returns the options used by NewMemoryStore.
func DefaultOptions() Options {
	return Options{
		MaxEntries:       0,
		CleanupInterval:  time.Minute,
		CleanupBatchSize: 1000,
	}
}

// Option is a functional option for configuring a MemoryStore.
type Option func(*Options)

// WithMaxEntries sets the maximum number of entries.
func WithMaxEntries(max int64) Option {
	return func(o *Options) {
		o.MaxEntries = max
	}
}

// WithCleanupInterval sets how often expired entries are cleaned up.
func WithCleanupInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.CleanupInterval = interval
	}
}

// WithCleanupBatchSize sets how many entries to clean per cycle.
func WithCleanupBatchSize(size int) Option {
	return func(o *Options) {
		o.CleanupBatchSize = size
	}
}

func applyOptions(opts ...Option) Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.CleanupBatchSize <= 0 {
		options.CleanupBatchSize = DefaultOptions().CleanupBatchSize
	}
	return options
}
