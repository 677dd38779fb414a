package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"package-manifest/internal/database"
	"package-manifest/internal/manifest"
)

// DefaultTTL is how long a processing result stays cached
const DefaultTTL = 24 * time.Hour

// cleanupInterval is how often expired entries are purged
const cleanupInterval = time.Minute

// CachedResult is an in-memory cached result with expiry
type CachedResult struct {
	Result    *manifest.Result
	ExpiresAt time.Time
}

// IsExpired checks if the cached result has expired
func (c *CachedResult) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// FileProcessor processes one manifest file
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) *manifest.Result
	// Strategy names the converter; results are cached per strategy
	Strategy() string
}

// Manager caches processing results in memory and in the database, keyed by
// the SHA-256 of the file content
type Manager struct {
	store    *database.ResultCacheStore
	memory   sync.Map // map[string]*CachedResult
	disabled bool
	ttl      time.Duration
	logger   *slog.Logger

	// Cleanup goroutine control
	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a new cache manager
func NewManager(store *database.ResultCacheStore, disabled bool, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ctx, cancel := context.WithCancel(context.Background())

	manager := &Manager{
		store:    store,
		disabled: disabled,
		ttl:      ttl,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	if !disabled {
		if err := manager.loadFromDatabase(); err != nil {
			logger.Warn("Failed to load cache from database", "error", err)
		}
		go manager.cleanupLoop()
	}

	return manager
}

// Key returns the cache key for a file hash processed with strategy
func Key(hash, strategy string) string {
	if strategy == "" {
		return hash
	}
	return hash + ":" + strategy
}

// HashFile returns the hex SHA-256 of the file at path
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ProcessFile returns the cached result for the file's content and proc's
// strategy, or runs proc and caches the result when it succeeded. The second return value reports a
// cache hit. Files that cannot be read are passed to proc unchanged so it can
// report the failure.
func (m *Manager) ProcessFile(ctx context.Context, path string, proc FileProcessor) (*manifest.Result, bool) {
	hash, err := HashFile(path)
	if err != nil {
		return proc.ProcessFile(ctx, path), false
	}

	key := Key(hash, proc.Strategy())
	if cached, err := m.Get(key); err != nil {
		m.logger.Warn("Cache lookup failed", "key", key, "error", err)
	} else if cached != nil {
		m.logger.Info("Using cached result", "file", path, "key", key)
		return cached, true
	}

	result := proc.ProcessFile(ctx, path)
	result.Metadata.FileHash = hash
	if result.Success {
		if err := m.Set(key, filepath.Base(path), result); err != nil {
			m.logger.Warn("Failed to cache result", "key", key, "error", err)
		}
	}
	return result, false
}

// Get retrieves a cached result by file hash
func (m *Manager) Get(hash string) (*manifest.Result, error) {
	if m.disabled {
		return nil, nil
	}

	if value, ok := m.memory.Load(hash); ok {
		cached := value.(*CachedResult)
		if !cached.IsExpired() {
			return cached.Result, nil
		}
		m.memory.Delete(hash)
	}

	entry, err := m.store.Get(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get from database cache: %w", err)
	}
	if entry == nil {
		return nil, nil
	}

	m.memory.Store(hash, &CachedResult{Result: entry.Result, ExpiresAt: entry.ExpiresAt})
	return entry.Result, nil
}

// Set stores a result in both memory and database
func (m *Manager) Set(hash, fileName string, result *manifest.Result) error {
	if m.disabled {
		return nil
	}

	if err := m.store.Set(hash, fileName, result, m.ttl); err != nil {
		return fmt.Errorf("failed to store in database cache: %w", err)
	}
	m.memory.Store(hash, &CachedResult{Result: result, ExpiresAt: time.Now().Add(m.ttl)})
	return nil
}

// Delete removes a cached result from both memory and database
func (m *Manager) Delete(hash string) error {
	if m.disabled {
		return nil
	}

	m.memory.Delete(hash)
	if err := m.store.Delete(hash); err != nil {
		return fmt.Errorf("failed to delete from database cache: %w", err)
	}
	return nil
}

// Clear removes every cached result
func (m *Manager) Clear() error {
	m.memory.Range(func(key, _ any) bool {
		m.memory.Delete(key)
		return true
	})
	return m.store.Clear()
}

// CleanExpired removes expired entries from both tiers and returns how many
// database entries were removed
func (m *Manager) CleanExpired() (int64, error) {
	memoryCount := 0
	m.memory.Range(func(key, value any) bool {
		if value.(*CachedResult).IsExpired() {
			m.memory.Delete(key)
			memoryCount++
		}
		return true
	})

	removed, err := m.store.DeleteExpired()
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired database cache entries: %w", err)
	}

	if memoryCount > 0 || removed > 0 {
		m.logger.Debug("Cleaned up expired cache entries", "memory", memoryCount, "database", removed)
	}
	return removed, nil
}

// IsEnabled returns true if caching is enabled
func (m *Manager) IsEnabled() bool {
	return !m.disabled
}

// GetTTL returns the cache TTL duration
func (m *Manager) GetTTL() time.Duration {
	return m.ttl
}

// loadFromDatabase warms the memory tier with all unexpired database entries
func (m *Manager) loadFromDatabase() error {
	entries, err := m.store.LoadAll()
	if err != nil {
		return err
	}

	for hash, entry := range entries {
		m.memory.Store(hash, &CachedResult{Result: entry.Result, ExpiresAt: entry.ExpiresAt})
	}
	if len(entries) > 0 {
		m.logger.Info("Loaded cache entries from database", "count", len(entries))
	}
	return nil
}

// cleanupLoop runs periodically to clean up expired entries
func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.CleanExpired(); err != nil {
				m.logger.Warn("Cache cleanup failed", "error", err)
			}
		}
	}
}

// GetStats returns cache statistics
func (m *Manager) GetStats() (CacheStats, error) {
	stats := CacheStats{
		Disabled: m.disabled,
		TTL:      m.ttl,
	}

	m.memory.Range(func(_, value any) bool {
		stats.MemoryTotal++
		if value.(*CachedResult).IsExpired() {
			stats.MemoryExpired++
		}
		return true
	})

	dbStats, err := m.store.GetStats()
	if err != nil {
		return stats, fmt.Errorf("failed to get database stats: %w", err)
	}
	stats.DatabaseTotal = dbStats.Total
	stats.DatabaseExpired = dbStats.Expired
	stats.DatabaseActive = dbStats.Total - dbStats.Expired
	stats.SizeBytes = dbStats.SizeBytes

	return stats, nil
}

// Close shuts down the cache manager and cleanup goroutine
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Disabled        bool          `json:"disabled" yaml:"disabled"`
	TTL             time.Duration `json:"ttl" yaml:"ttl"`
	MemoryTotal     int           `json:"memory_total" yaml:"memory_total"`
	MemoryExpired   int           `json:"memory_expired" yaml:"memory_expired"`
	DatabaseTotal   int           `json:"database_total" yaml:"database_total"`
	DatabaseExpired int           `json:"database_expired" yaml:"database_expired"`
	DatabaseActive  int           `json:"database_active" yaml:"database_active"`
	SizeBytes       int64         `json:"size_bytes" yaml:"size_bytes"`
}
