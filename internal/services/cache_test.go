package services

import (
	"context"
	"testing"
	"time"

	"github.com/nexconsult/certidao-api/internal/logger"
	"github.com/nexconsult/certidao-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCNDCacheRoundTrip(t *testing.T) {
	cache := NewCNDCache(nil, time.Minute, logger.Discard())
	ctx := context.Background()

	_, err := cache.Load(ctx, "00000000000191")
	assert.ErrorIs(t, err, ErrCacheMiss)

	stored := &models.CndResponse{CNPJ: "00000000000191", ConteudoCertidao: "LINHA 1\nLINHA 2", Cache: true}
	require.NoError(t, cache.Store(ctx, stored))

	got, err := cache.Load(ctx, "00000000000191")
	require.NoError(t, err)
	assert.Equal(t, "LINHA 1\nLINHA 2", got.ConteudoCertidao)
	assert.False(t, got.Cache, "the served-from-cache flag is not persisted")

	removed, err := cache.Evict(ctx, "00000000000191")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = cache.Evict(ctx, "00000000000191")
	require.NoError(t, err)
	assert.False(t, removed)

	stats := cache.Stats(ctx)
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
	assert.Equal(t, map[string]interface{}{"available": false}, stats["redis"])
	assert.Equal(t, map[string]interface{}{"entries": 0}, stats["memory"])
}

func TestCNDCacheRejectsResponseWithoutCNPJ(t *testing.T) {
	cache := NewCNDCache(nil, time.Minute, logger.Discard())

	assert.Error(t, cache.Store(context.Background(), nil))
	assert.Error(t, cache.Store(context.Background(), &models.CndResponse{ConteudoCertidao: "x"}))
}

func TestCNDCacheExpiry(t *testing.T) {
	cache := NewCNDCache(nil, time.Millisecond, logger.Discard())
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, &models.CndResponse{CNPJ: "00000000000191"}))
	time.Sleep(5 * time.Millisecond)

	_, err := cache.Load(ctx, "00000000000191")
	assert.ErrorIs(t, err, ErrCacheMiss)

	removed, err := cache.Evict(ctx, "00000000000191")
	require.NoError(t, err)
	assert.False(t, removed, "expired entries do not count as evicted")
}

func TestCNDCacheDropsUndecodableEntries(t *testing.T) {
	cache := NewCNDCache(nil, time.Minute, logger.Discard())
	cache.entries[CNDCacheKey("00000000000191")] = cndEntry{payload: []byte("{"), expiresAt: time.Now().Add(time.Minute)}

	_, err := cache.Load(context.Background(), "00000000000191")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Empty(t, cache.entries)
}

func TestCleanupRoutineDropsExpiredEntries(t *testing.T) {
	cache := NewCNDCache(nil, time.Millisecond, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, cache.Store(ctx, &models.CndResponse{CNPJ: "00000000000191"}))
	require.NoError(t, cache.Store(ctx, &models.CndResponse{CNPJ: "11222333000181"}))
	cache.StartCleanupRoutine(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return cache.Stats(ctx)["memory"].(map[string]interface{})["entries"] == 0
	}, time.Second, 5*time.Millisecond)
}

func TestCNDCacheHealthWithoutRedis(t *testing.T) {
	health := NewCNDCache(nil, time.Minute, logger.Discard()).Health()
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "disabled", health["redis"])
}
