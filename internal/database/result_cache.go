package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"package-manifest/internal/manifest"
)

// CachedResult is a processing result stored under the hash of its source file
type CachedResult struct {
	FileHash  string           `json:"file_hash" yaml:"file_hash"`
	FileName  string           `json:"file_name" yaml:"file_name"`
	Result    *manifest.Result `json:"result" yaml:"result"`
	CachedAt  time.Time        `json:"cached_at" yaml:"cached_at"`
	ExpiresAt time.Time        `json:"expires_at" yaml:"expires_at"`
}

// CacheStats summarizes the result cache table
type CacheStats struct {
	Total     int   `json:"total" yaml:"total"`
	Expired   int   `json:"expired" yaml:"expired"`
	SizeBytes int64 `json:"size_bytes" yaml:"size_bytes"`
}

// ResultCacheStore handles database operations for cached processing results
type ResultCacheStore struct {
	db *sql.DB
}

// NewResultCacheStore creates a new result cache store
func NewResultCacheStore(db *sql.DB) *ResultCacheStore {
	return &ResultCacheStore{db: db}
}

// Get retrieves the cached result for a file hash. A miss or an expired
// entry returns nil without error.
func (r *ResultCacheStore) Get(fileHash string) (*CachedResult, error) {
	query := `SELECT file_name, result_data, cached_at, expires_at FROM result_cache WHERE file_hash = ?`

	entry := CachedResult{FileHash: fileHash}
	var data string
	err := r.db.QueryRow(query, fileHash).Scan(&entry.FileName, &data, &entry.CachedAt, &entry.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached result: %w", err)
	}

	if time.Now().After(entry.ExpiresAt) {
		if err := r.Delete(fileHash); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var result manifest.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to deserialize cached result: %w", err)
	}
	entry.Result = &result

	return &entry, nil
}

// Set stores a result with the given TTL, replacing any previous entry
func (r *ResultCacheStore) Set(fileHash, fileName string, result *manifest.Result, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	now := time.Now().UTC()
	query := `INSERT OR REPLACE INTO result_cache (file_hash, file_name, result_data, cached_at, expires_at)
			  VALUES (?, ?, ?, ?, ?)`

	if _, err := r.db.Exec(query, fileHash, fileName, string(data), now, now.Add(ttl)); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// Delete removes the cached entry for a file hash
func (r *ResultCacheStore) Delete(fileHash string) error {
	if _, err := r.db.Exec(`DELETE FROM result_cache WHERE file_hash = ?`, fileHash); err != nil {
		return fmt.Errorf("failed to delete cached entry: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired entries and returns how many were removed
func (r *ResultCacheStore) DeleteExpired() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM result_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	return result.RowsAffected()
}

// Clear removes every entry
func (r *ResultCacheStore) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM result_cache`); err != nil {
		return fmt.Errorf("failed to clear result cache: %w", err)
	}
	return nil
}

// LoadAll loads all non-expired entries, keyed by file hash.
// Used to warm the in-memory cache on startup.
func (r *ResultCacheStore) LoadAll() (map[string]*CachedResult, error) {
	query := `SELECT file_hash, file_name, result_data, cached_at, expires_at FROM result_cache WHERE expires_at > ?`

	rows, err := r.db.Query(query, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load cache entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]*CachedResult)
	for rows.Next() {
		var entry CachedResult
		var data string
		if err := rows.Scan(&entry.FileHash, &entry.FileName, &data, &entry.CachedAt, &entry.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}

		var result manifest.Result
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			// unreadable entries are left for DeleteExpired
			continue
		}
		entry.Result = &result
		entries[entry.FileHash] = &entry
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cache entries: %w", err)
	}
	return entries, nil
}

// GetStats returns entry counts and the total stored payload size
func (r *ResultCacheStore) GetStats() (*CacheStats, error) {
	stats := &CacheStats{}

	err := r.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(result_data)), 0) FROM result_cache`).
		Scan(&stats.Total, &stats.SizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to get total cache entries: %w", err)
	}

	err = r.db.QueryRow(`SELECT COUNT(*) FROM result_cache WHERE expires_at <= ?`, time.Now().UTC()).Scan(&stats.Expired)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired cache entries: %w", err)
	}

	return stats, nil
}
