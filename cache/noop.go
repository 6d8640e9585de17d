package cache

import (
	"sync/atomic"

	"github.com/lumenview/lumenview/types"
)

// NoopCache is the degraded mode: every lookup misses and every write is
// discarded. Handed out when caching is disabled or the store cannot be
// opened, so callers stay oblivious to whether caching is active.
type NoopCache struct {
	running int32
}

func NewNoopCache() types.MetadataCache {
	return &NoopCache{}
}

func (n *NoopCache) Start() error {
	if !atomic.CompareAndSwapInt32(&n.running, 0, 1) {
		return types.ErrServerAlreadyRunning
	}
	return nil
}

func (n *NoopCache) Stop() error {
	if !atomic.CompareAndSwapInt32(&n.running, 1, 0) {
		return types.ErrServerNotRunning
	}
	return nil
}

func (n *NoopCache) IsRunning() bool {
	return atomic.LoadInt32(&n.running) == 1
}

func (n *NoopCache) Get(path, fingerprint string) (*types.ImageDimensions, error) {
	return nil, nil
}

func (n *NoopCache) Set(path, fingerprint string, width, height uint32, fileSize uint64) error {
	return nil
}

func (n *NoopCache) Stats() (types.CacheStats, error) {
	return types.CacheStats{}, nil
}

func (n *NoopCache) Clear() error {
	return nil
}

func (n *NoopCache) Flush() error {
	return nil
}
