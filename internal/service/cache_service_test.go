package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type memoryCache struct {
	items map[string][]byte
	ttls  map[string]time.Duration
	err   error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	if m.err != nil {
		return m.err
	}
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCache()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Hour, nil, true)
	ctx := context.Background()

	_, ok, err := svc.GetResult(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, ok)

	result := exportResult()
	require.NoError(t, svc.SetResult(ctx, result, 0))
	key := runCacheKeyPrefix + result.Run.ID
	assert.Equal(t, time.Hour, repo.ttls[key])

	got, ok, err := svc.GetResult(ctx, result.Run.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.Rows, got.Rows)
	assert.Equal(t, "Ms.Sari Dewi", got.Names.Teacher("T2"))

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)

	require.NoError(t, svc.InvalidateRuns(ctx))
	_, ok, _ = svc.GetResult(ctx, result.Run.ID)
	assert.False(t, ok)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, 0, nil, false)
	assert.False(t, svc.Enabled())
	require.NoError(t, svc.SetResult(context.Background(), &models.TimetableResult{}, 0))
	assert.Empty(t, repo.items)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	_, ok, err := nilSvc.GetResult(context.Background(), "x")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheServiceBackendError(t *testing.T) {
	repo := newMemoryCache()
	repo.err = errors.New("connection refused")
	svc := NewCacheService(repo, nil, 0, nil, true)
	_, ok, err := svc.GetResult(context.Background(), "run-1")
	assert.Error(t, err)
	assert.False(t, ok)
}
