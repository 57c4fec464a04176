package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexconsult/certidao-api/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned by Load when no live entry exists for the CNPJ
var ErrCacheMiss = errors.New("CND not cached")

const cndKeyPrefix = "cnd:"

// CNDCacheKey is the storage key holding the lookup result for cnpj
func CNDCacheKey(cnpj string) string {
	return cndKeyPrefix + cnpj
}

// CNDCache keeps successful CND lookups for a TTL. Redis is the primary store;
// process memory takes over while Redis is disabled or failing.
type CNDCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger

	mu      sync.RWMutex
	entries map[string]cndEntry

	hits   atomic.Int64
	misses atomic.Int64
}

type cndEntry struct {
	payload   []byte
	expiresAt time.Time
}

func (e cndEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// NewCNDCache creates the cache; client may be nil
func NewCNDCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *CNDCache {
	return &CNDCache{
		client:  client,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]cndEntry),
	}
}

// Load returns the cached lookup for cnpj or ErrCacheMiss. Undecodable entries
// are dropped and reported as misses.
func (c *CNDCache) Load(ctx context.Context, cnpj string) (*models.CndResponse, error) {
	key := CNDCacheKey(cnpj)
	log := c.logger.WithField("cnpj", cnpj)

	payload, source, ok := c.read(ctx, key, log)
	if !ok {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}

	var response models.CndResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		log.WithError(err).Warn("Dropping undecodable CND cache entry")
		_, _ = c.Evict(ctx, cnpj)
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}

	c.hits.Add(1)
	log.WithField("source", source).Debug("CND cache hit")
	return &response, nil
}

func (c *CNDCache) read(ctx context.Context, key string, log *logrus.Entry) ([]byte, string, bool) {
	if c.client != nil {
		val, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return val, "redis", true
		}
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).Warn("Redis get failed, using memory cache")
		}
	}

	now := time.Now()
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || entry.expired(now) {
		return nil, "", false
	}
	return entry.payload, "memory", true
}

// Store caches response under its CNPJ for the configured TTL
func (c *CNDCache) Store(ctx context.Context, response *models.CndResponse) error {
	if response == nil || response.CNPJ == "" {
		return fmt.Errorf("cannot cache CND without CNPJ")
	}
	stored := *response
	stored.Cache = false
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode CND: %w", err)
	}

	key := CNDCacheKey(response.CNPJ)
	if c.client != nil {
		err := c.client.Set(ctx, key, payload, c.ttl).Err()
		if err == nil {
			return nil
		}
		c.logger.WithError(err).WithField("cnpj", response.CNPJ).Warn("Redis set failed, using memory cache")
	}

	c.mu.Lock()
	c.entries[key] = cndEntry{payload: payload, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

// Evict removes the cached lookup for cnpj from both stores and reports
// whether a live entry was present
func (c *CNDCache) Evict(ctx context.Context, cnpj string) (bool, error) {
	key := CNDCacheKey(cnpj)
	removed := false

	if c.client != nil {
		n, err := c.client.Del(ctx, key).Result()
		if err != nil {
			c.logger.WithError(err).WithField("cnpj", cnpj).Warn("Redis delete failed")
		}
		removed = n > 0
	}

	now := time.Now()
	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		removed = removed || !entry.expired(now)
		delete(c.entries, key)
	}
	c.mu.Unlock()

	return removed, nil
}

// Stats reports hit/miss counters and store sizes
func (c *CNDCache) Stats(ctx context.Context) map[string]interface{} {
	redisStats := map[string]interface{}{"available": false}
	if c.client != nil {
		if n, err := c.client.Eval(ctx, countKeysScript, nil, cndKeyPrefix+"*").Int64(); err == nil {
			redisStats = map[string]interface{}{"available": true, "entries": n}
		} else {
			redisStats["error"] = err.Error()
		}
	}

	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return map[string]interface{}{
		"redis":  redisStats,
		"memory": map[string]interface{}{"entries": size},
		"ttl":    c.ttl.String(),
		"hits":   c.hits.Load(),
		"misses": c.misses.Load(),
	}
}

// countKeysScript counts keys matching ARGV[1] without shipping them to the client
const countKeysScript = `
local cursor, n = "0", 0
repeat
  local r = redis.call("SCAN", cursor, "MATCH", ARGV[1], "COUNT", 500)
  cursor = r[1]
  n = n + #r[2]
until cursor == "0"
return n`

// Health pings Redis; an unreachable Redis degrades but never fails the cache
func (c *CNDCache) Health() map[string]interface{} {
	if c.client == nil {
		return map[string]interface{}{"status": "healthy", "redis": "disabled"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return map[string]interface{}{"status": "degraded", "redis": "unreachable", "error": err.Error()}
	}
	return map[string]interface{}{"status": "healthy", "redis": "connected"}
}

func (c *CNDCache) dropExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}
}

// StartCleanupRoutine periodically drops expired memory entries until ctx ends
func (c *CNDCache) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				c.dropExpired(now)
			}
		}
	}()
}
