package persistence

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupeCache marks inbound message keys as processed. MarkProcessed returns
// true when the key was not seen before (within the TTL window).
type DedupeCache interface {
	MarkProcessed(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context) error
}

// InboundKey derives the idempotency key for an inbound message: the
// provider message id when present, otherwise a digest of the message basis.
func InboundKey(provider, messageID, from string, timestamp int64, text string) string {
	if provider == "" {
		provider = "unknown"
	}
	if messageID != "" && !strings.HasPrefix(messageID, "local-") {
		return fmt.Sprintf("provider:%s:id:%s", provider, messageID)
	}
	basis := strings.Join([]string{provider, from, fmt.Sprintf("%d", timestamp), text}, "|")
	digest := sha256.Sum256([]byte(basis))
	return fmt.Sprintf("provider:%s:hash:%s", provider, hex.EncodeToString(digest[:])[:24])
}

type memoryEntry struct {
	key    string
	seenAt time.Time
}

// MemoryDedupeCache is an LRU cache with per-entry TTL, shared across all
// conversations of one process.
type MemoryDedupeCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxKeys int
	order   *list.List
	entries map[string]*list.Element
	now     func() time.Time
}

// NewMemoryDedupeCache creates the default in-process cache.
func NewMemoryDedupeCache(ttl time.Duration, maxKeys int) *MemoryDedupeCache {
	return &MemoryDedupeCache{
		ttl:     ttl,
		maxKeys: maxKeys,
		order:   list.New(),
		entries: make(map[string]*list.Element),
		now:     time.Now,
	}
}

func (c *MemoryDedupeCache) MarkProcessed(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	cutoff := now.Add(-c.ttl)

	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(*memoryEntry)
		if entry.seenAt.Before(cutoff) {
			c.order.Remove(elem)
			delete(c.entries, entry.key)
		}
		elem = next
	}
	for c.maxKeys > 0 && len(c.entries) > c.maxKeys {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		entry := oldest.Value.(*memoryEntry)
		c.order.Remove(oldest)
		delete(c.entries, entry.key)
	}

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToBack(elem)
		return false, nil
	}
	c.entries[key] = c.order.PushBack(&memoryEntry{key: key, seenAt: now})
	return true, nil
}

func (c *MemoryDedupeCache) Reset(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
	return nil
}

// RedisDedupeCache shares the seen-key set across instances via SET NX.
type RedisDedupeCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisDedupeCache creates a Redis-backed cache.
func NewRedisDedupeCache(client *redis.Client, ttl time.Duration) *RedisDedupeCache {
	return &RedisDedupeCache{client: client, ttl: ttl, prefix: "leadqual:inbound:"}
}

func (c *RedisDedupeCache) MarkProcessed(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, c.prefix+key, 1, c.ttl).Result()
}

func (c *RedisDedupeCache) Reset(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
