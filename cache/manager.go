package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lumenview/lumenview/types"
)

var customCacheCreators = make(map[string]types.MetadataCacheCreator)

func RegisterMetadataCache(cacheName string, creator types.MetadataCacheCreator) {
	customCacheCreators[cacheName] = creator
}

// NewManager builds the metadata cache from config. A store that cannot be
// opened degrades to the no-op implementation instead of failing the whole
// service: the cache is an optimization, image loading must survive without
// it.
func NewManager(ctx context.Context, config types.ConfigManager, logger types.Logger, metrics types.MetricsManager, broker types.EventBroker) (types.MetadataCache, error) {
	cacheConfig := config.GetConfig().Cache

	if cacheConfig == nil || !cacheConfig.Enabled {
		logger.Info("Metadata cache disabled, using noop cache")
		return NewNoopCache(), nil
	}

	var impl types.MetadataCache
	var err error

	switch cacheConfig.Type {
	case "sqlite":
		var stateDir string
		stateDir, err = config.GetConfig().StateDir()
		if err == nil {
			impl, err = NewSQLiteCache(ctx, logger, cacheConfig, stateDir, broker)
		}
	case "noop":
		impl = NewNoopCache()
	default:
		if creator, exists := customCacheCreators[cacheConfig.Type]; exists {
			impl, err = creator(cacheConfig)
		} else {
			return nil, types.Errorf(types.ErrCacheTypeUnknown, "type: %s", cacheConfig.Type)
		}
	}

	if err != nil {
		logger.Warn("Metadata cache unavailable, degrading to noop cache", zap.Error(err))
		impl = NewNoopCache()
	}

	return newInstrumentedMetadataCache(logger, metrics, impl), nil
}

type instrumentedMetadataCache struct {
	impl    types.MetadataCache
	logger  types.Logger
	metrics types.MetricsManager
}

func newInstrumentedMetadataCache(logger types.Logger, metrics types.MetricsManager, impl types.MetadataCache) types.MetadataCache {
	return &instrumentedMetadataCache{
		impl:    impl,
		logger:  logger,
		metrics: metrics,
	}
}

func (icm *instrumentedMetadataCache) Get(path, fingerprint string) (*types.ImageDimensions, error) {
	start := time.Now()
	dims, err := icm.impl.Get(path, fingerprint)
	duration := time.Since(start)

	result := "miss"
	if err != nil {
		result = "error"
	} else if dims != nil {
		result = "hit"
	}

	icm.recordMetric("get", result, duration)
	return dims, err
}

func (icm *instrumentedMetadataCache) Set(path, fingerprint string, width, height uint32, fileSize uint64) error {
	start := time.Now()
	err := icm.impl.Set(path, fingerprint, width, height, fileSize)
	duration := time.Since(start)

	result := "success"
	if err != nil {
		result = "error"
	}

	icm.recordMetric("set", result, duration)
	return err
}

func (icm *instrumentedMetadataCache) Stats() (types.CacheStats, error) {
	return icm.impl.Stats()
}

func (icm *instrumentedMetadataCache) Clear() error {
	start := time.Now()
	err := icm.impl.Clear()
	duration := time.Since(start)

	result := "success"
	if err != nil {
		result = "error"
	}

	icm.recordMetric("clear", result, duration)
	return err
}

func (icm *instrumentedMetadataCache) Flush() error {
	start := time.Now()
	err := icm.impl.Flush()
	duration := time.Since(start)

	result := "success"
	if err != nil {
		result = "error"
	}

	icm.recordMetric("flush", result, duration)
	return err
}

func (icm *instrumentedMetadataCache) Start() error {
	return icm.impl.Start()
}

func (icm *instrumentedMetadataCache) Stop() error {
	return icm.impl.Stop()
}

func (icm *instrumentedMetadataCache) IsRunning() bool {
	return icm.impl.IsRunning()
}

func (icm *instrumentedMetadataCache) recordMetric(operation, result string, duration time.Duration) {
	if icm.metrics == nil {
		return
	}

	opCounter := icm.metrics.Counter("cache_operations_total", map[string]string{
		"operation": operation,
		"result":    result,
	})
	opCounter.Inc()

	opDuration := icm.metrics.Histogram("cache_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"operation": operation},
	)
	opDuration.Observe(duration.Seconds())
}
