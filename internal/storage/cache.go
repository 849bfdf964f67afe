package storage

import (
	"database/sql"
	"time"
)

// GetCacheEntry returns the entry for key if it is younger than ttl.
// Expired entries are removed and reported as ErrNotFound.
func (s *Store) GetCacheEntry(key string, ttl time.Duration) (CacheEntry, error) {
	var e CacheEntry
	var createdAt string
	err := s.db.QueryRow(`SELECT key, model, response, created_at FROM llm_cache WHERE key = ?`, key).
		Scan(&e.Key, &e.Model, &e.Response, &createdAt)
	if err == sql.ErrNoRows {
		return CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return CacheEntry{}, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return CacheEntry{}, err
	}
	if ttl > 0 && time.Since(e.CreatedAt) > ttl {
		if _, err := s.db.Exec(`DELETE FROM llm_cache WHERE key = ?`, key); err != nil {
			return CacheEntry{}, err
		}
		return CacheEntry{}, ErrNotFound
	}
	return e, nil
}

func (s *Store) PutCacheEntry(e CacheEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO llm_cache (key, model, response, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET model = excluded.model, response = excluded.response,
			created_at = excluded.created_at`,
		e.Key, e.Model, e.Response, formatTime(e.CreatedAt))
	return err
}

// PruneCache deletes entries older than ttl and returns how many were removed.
func (s *Store) PruneCache(ttl time.Duration) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM llm_cache WHERE created_at < ?`, formatTime(time.Now().Add(-ttl)))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
