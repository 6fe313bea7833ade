package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"pawvox/internal/kv"
)

const (
	DefaultCacheSize = 100

	cachePrefix = "tts_cache:"
)

type CacheEntry struct {
	Text           string        `json:"text"`
	TextHash       string        `json:"textHash"`
	Audio          []byte        `json:"audioBuffer"`
	Format         string        `json:"format"`
	AudioURL       string        `json:"audioUrl"`
	Duration       time.Duration `json:"duration"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastAccessedAt time.Time     `json:"lastAccessedAt"`
	AccessCount    int           `json:"accessCount"`
	CharacterCount int           `json:"characterCount"`
}

// Hash keys the cache. Case and whitespace differences share an entry.
func Hash(text string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}

// Cache keeps the most recently used entries in memory and mirrors them to
// the kv store so they survive restarts. Evicted entries are removed from
// both.
type Cache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *CacheEntry]
	persist kv.Store
	now     func() time.Time
}

func NewCache(size int, persist kv.Store, now func() time.Time) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if now == nil {
		now = time.Now
	}
	c := &Cache{persist: persist, now: now}
	entries, err := lru.NewWithEvict[string, *CacheEntry](size, c.evicted)
	if err != nil {
		return nil, fmt.Errorf("tts cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

func (c *Cache) evicted(hash string, _ *CacheEntry) {
	if c.persist == nil {
		return
	}
	if err := c.persist.Remove(context.Background(), cachePrefix+hash); err != nil {
		log.Warn("Failed to drop evicted audio", "hash", hash, "err", err)
	}
}

// Get returns the entry for hash and marks it as used.
func (c *Cache) Get(ctx context.Context, hash string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(hash)
	if !ok {
		e, ok = c.restore(ctx, hash)
		if !ok {
			return CacheEntry{}, false
		}
		c.entries.Add(hash, e)
	}
	e.LastAccessedAt = c.now()
	e.AccessCount++
	return *e, true
}

func (c *Cache) restore(ctx context.Context, hash string) (*CacheEntry, bool) {
	if c.persist == nil {
		return nil, false
	}
	raw, err := c.persist.Get(ctx, cachePrefix+hash)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.Warn("Failed to read cached audio", "hash", hash, "err", err)
		}
		return nil, false
	}
	var e CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Warn("Dropping corrupt cached audio", "hash", hash, "err", err)
		_ = c.persist.Remove(ctx, cachePrefix+hash)
		return nil, false
	}
	return &e, true
}

func (c *Cache) Put(ctx context.Context, e CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.TextHash == "" {
		e.TextHash = Hash(e.Text)
	}
	c.entries.Add(e.TextHash, &e)

	if c.persist == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		log.Warn("Failed to encode audio for cache", "hash", e.TextHash, "err", err)
		return
	}
	if err := c.persist.Set(ctx, cachePrefix+e.TextHash, raw); err != nil {
		log.Warn("Failed to persist cached audio", "hash", e.TextHash, "err", err)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Contains reports presence without touching recency.
func (c *Cache) Contains(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Contains(hash)
}
