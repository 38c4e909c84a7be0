package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikey/mail-classifier/internal/adapters/cache"
	"github.com/mikey/mail-classifier/internal/config"
	"github.com/mikey/mail-classifier/internal/core"
	"github.com/mikey/mail-classifier/internal/observability/metrics"
)

// CacheFactory creates prediction caches based on configuration
type CacheFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.EngineMetrics
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger, m *metrics.EngineMetrics) *CacheFactory {
	return &CacheFactory{cfg: cfg, logger: logger, metrics: m}
}

// CreatePredictionCache creates a prediction cache based on the configuration
func (f *CacheFactory) CreatePredictionCache() (core.PredictionCache, error) {
	cacheCfg := f.cfg.GetCache()
	onEvict := f.metrics.ObserveCacheEviction

	switch cacheCfg.Type {
	case "memory":
		return cache.NewMemoryCache(cacheCfg.Capacity, f.logger, onEvict), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cacheCfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite cache directory: %w", err)
		}
		return cache.NewSQLiteCache(cacheCfg.SQLitePath, cacheCfg.Capacity, f.logger, onEvict)
	case "mysql":
		return cache.NewMySQLCache(cacheCfg.MySQLDSN, cacheCfg.Capacity, f.logger, onEvict)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}

// IsCacheEnabled returns whether caching is enabled
func (f *CacheFactory) IsCacheEnabled() bool {
	return f.cfg.GetCache().Enabled
}
