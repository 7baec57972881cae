package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/arsview/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketQueries = []byte("queries")
	bucketResults = []byte("results")
)

var allBuckets = [][]byte{bucketQueries, bucketResults}

// cachedResults is the stored form of a query's merged result list
type cachedResults struct {
	Results     []domain.Result `json:"results"`
	CompletedAt time.Time       `json:"completed_at"`
}

// QueryStore implements domain.Store using BoltDB.
type QueryStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

// NewQueryStore opens the cache for one aggregator under baseCacheDir.
// An empty baseCacheDir keeps everything in memory.
func NewQueryStore(baseCacheDir, serverURL string) (*QueryStore, error) {
	if baseCacheDir == "" {
		// Memory-only mode (no persistence)
		return &QueryStore{cache: make(map[string][]byte)}, nil
	}

	dir := baseCacheDir
	if serverURL != "" {
		dir = filepath.Join(baseCacheDir, hashServerURL(serverURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "arsview.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &QueryStore{db: db, cache: make(map[string][]byte)}, nil
}

func hashServerURL(serverURL string) string {
	normalized := strings.TrimRight(strings.ToLower(serverURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *QueryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *QueryStore) get(bucket []byte, key string, dest any) bool {
	cacheKey := string(bucket) + ":" + key

	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *QueryStore) set(bucket []byte, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
}

func (s *QueryStore) delete(bucket []byte, key string) {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	delete(s.cache, cacheKey)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b != nil {
			b.Delete([]byte(key))
		}
		return nil
	})
}

// each calls fn with every stored value in bucket. The database is
// authoritative when open; in memory-only mode the cache is.
func (s *QueryStore) each(bucket []byte, fn func(data []byte)) {
	if s.db == nil {
		prefix := string(bucket) + ":"
		s.mu.RLock()
		defer s.mu.RUnlock()
		for k, v := range s.cache {
			if strings.HasPrefix(k, prefix) {
				fn(v)
			}
		}
		return
	}

	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			fn(v)
			return nil
		})
	})
}

// === Queries ===

func (s *QueryStore) GetQuery(id string) (domain.Query, bool) {
	var q domain.Query
	ok := s.get(bucketQueries, id, &q)
	return q, ok
}

func (s *QueryStore) SaveQuery(q domain.Query) error {
	if q.ID == "" {
		return fmt.Errorf("save query: %w", domain.ErrInvalidQuery)
	}
	return s.set(bucketQueries, q.ID, q)
}

// RecentQueries returns up to limit queries, newest submission first.
// A limit of zero or less returns all of them.
func (s *QueryStore) RecentQueries(limit int) []domain.Query {
	var queries []domain.Query
	s.each(bucketQueries, func(data []byte) {
		var q domain.Query
		if json.Unmarshal(data, &q) == nil {
			queries = append(queries, q)
		}
	})

	sort.Slice(queries, func(i, j int) bool {
		if !queries[i].SubmittedAt.Equal(queries[j].SubmittedAt) {
			return queries[i].SubmittedAt.After(queries[j].SubmittedAt)
		}
		return queries[i].ID < queries[j].ID
	})

	if limit > 0 && len(queries) > limit {
		queries = queries[:limit]
	}
	return queries
}

// === Results ===

func (s *QueryStore) GetResults(queryID string) ([]domain.Result, bool) {
	var cached cachedResults
	if !s.get(bucketResults, queryID, &cached) {
		return nil, false
	}
	return cached.Results, true
}

func (s *QueryStore) SaveResults(queryID string, results []domain.Result, completedAt time.Time) error {
	return s.set(bucketResults, queryID, cachedResults{Results: results, CompletedAt: completedAt})
}

// === Invalidation ===

// InvalidateQuery forgets a query and its results
func (s *QueryStore) InvalidateQuery(queryID string) {
	s.delete(bucketQueries, queryID)
	s.delete(bucketResults, queryID)
}

func (s *QueryStore) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if err := tx.DeleteBucket(bucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}
