package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

const runCacheKeyPrefix = "timetable:run:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService keeps finished timetable results in the shared cache so any
// API replica can answer for a run.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// GetResult looks up a run result. A miss is reported as (nil, false, nil).
func (s *CacheService) GetResult(ctx context.Context, runID string) (*models.TimetableResult, bool, error) {
	if !s.Enabled() {
		return nil, false, nil
	}
	start := time.Now()
	var result models.TimetableResult
	err := s.repo.Get(ctx, runCacheKeyPrefix+runID, &result)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, false, nil
		}
		s.logger.Warn("cache get failed", zap.String("run_id", runID), zap.Error(err))
		return nil, false, err
	}
	return &result, true, nil
}

// SetResult stores result under its run id.
func (s *CacheService) SetResult(ctx context.Context, result *models.TimetableResult, ttl time.Duration) error {
	if !s.Enabled() || result == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, runCacheKeyPrefix+result.Run.ID, result, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("run_id", result.Run.ID), zap.Error(err))
	}
	return err
}

// InvalidateRuns drops every cached run, e.g. after the catalog changed.
func (s *CacheService) InvalidateRuns(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, runCacheKeyPrefix+"*"); err != nil {
		s.logger.Warn("cache invalidate failed", zap.Error(err))
		return err
	}
	return nil
}
