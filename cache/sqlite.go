package cache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/lumenview/lumenview/types"
	"github.com/lumenview/lumenview/utils"
)

type SQLiteState int32

const (
	SQLiteStateStopped SQLiteState = iota
	SQLiteStateStarting
	SQLiteStateRunning
	SQLiteStateStopping
)

const DefaultMaxEntries = 10000

// Fixed-width timestamp so lexicographic order on the last_accessed column
// matches chronological order.
const accessTimeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteConfig struct {
	Path       string `yaml:"path" json:"path"`
	MaxEntries int    `yaml:"max_entries" json:"max_entries"`
}

// SQLiteCache is the durable image-metadata store. One table keyed by file
// path, one recency index, one connection guarded by one mutex: every
// operation is linearized, which is the whole consistency story.
type SQLiteCache struct {
	ctx        context.Context
	cancel     context.CancelFunc
	logger     types.Logger
	broker     types.EventBroker
	config     *SQLiteConfig
	db         *sql.DB
	maxEntries int
	mu         sync.Mutex
	state      atomic.Value
}

func NewSQLiteCache(ctx context.Context, logger types.Logger, config *types.CacheConfig, stateDir string, broker types.EventBroker) (types.MetadataCache, error) {
	sqliteConfig := &SQLiteConfig{
		MaxEntries: DefaultMaxEntries,
	}

	if config.Config != nil {
		err := utils.UnmarshalConfig(config.Config, sqliteConfig)
		if err != nil {
			return nil, types.WrapError(err, "failed to unmarshal sqlite cache config")
		}
	}

	if sqliteConfig.MaxEntries < 1 {
		return nil, types.Errorf(types.ErrCacheZeroCapacity, "max_entries: %d", sqliteConfig.MaxEntries)
	}

	dbPath := sqliteConfig.Path
	if dbPath == "" {
		if stateDir == "" {
			return nil, types.Errorf(types.ErrCacheUnavailable, "no database path configured")
		}
		dbPath = filepath.Join(stateDir, "metadata.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, types.Errorf(types.ErrCacheUnavailable, "failed to create cache directory: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, types.Errorf(types.ErrCacheUnavailable, "failed to open cache database: %v", err)
	}

	// The store is a single-writer, single-reader-at-a-time resource.
	db.SetMaxOpenConns(1)

	if err := configurePragmas(db); err != nil {
		_ = db.Close()
		return nil, types.Errorf(types.ErrCacheUnavailable, "failed to configure pragmas: %v", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, types.Errorf(types.ErrCacheUnavailable, "failed to create schema: %v", err)
	}

	cacheCtx, cancel := context.WithCancel(ctx)

	c := &SQLiteCache{
		ctx:        cacheCtx,
		cancel:     cancel,
		logger:     logger,
		broker:     broker,
		config:     sqliteConfig,
		db:         db,
		maxEntries: sqliteConfig.MaxEntries,
	}

	c.state.Store(SQLiteStateStopped)

	logger.Info("Metadata cache initialized",
		zap.String("path", dbPath),
		zap.Int("max_entries", sqliteConfig.MaxEntries))

	return c, nil
}

func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return err
		}
	}

	return nil
}

func createSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS image_metadata (
		file_path TEXT PRIMARY KEY,
		last_modified TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		file_size INTEGER NOT NULL,
		last_accessed TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_last_accessed ON image_metadata (last_accessed);
	`
	_, err := db.Exec(query)
	return err
}

func (c *SQLiteCache) Start() error {
	if !c.state.CompareAndSwap(SQLiteStateStopped, SQLiteStateRunning) {
		return types.ErrServerAlreadyRunning
	}

	c.logger.Info("Metadata cache started")
	return nil
}

func (c *SQLiteCache) Stop() error {
	if !c.state.CompareAndSwap(SQLiteStateRunning, SQLiteStateStopping) {
		return types.ErrServerNotRunning
	}

	defer func() {
		c.state.Store(SQLiteStateStopped)
		c.cancel()
	}()

	if err := c.Flush(); err != nil {
		c.logger.Warn("Cache flush on shutdown failed", zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.Close(); err != nil {
		return types.WrapError(err, "failed to close cache database")
	}

	c.logger.Info("Metadata cache stopped gracefully")
	return nil
}

func (c *SQLiteCache) IsRunning() bool {
	return c.state.Load().(SQLiteState) == SQLiteStateRunning
}

// Get looks up path. A record whose stored fingerprint differs from the
// caller's is stale: it is deleted and the call reports a miss so the caller
// re-decodes and calls Set.
func (c *SQLiteCache) Get(path, fingerprint string) (*types.ImageDimensions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var width, height uint32
	var fileSize uint64
	var cachedFingerprint string

	err := c.db.QueryRow(
		"SELECT width, height, file_size, last_modified FROM image_metadata WHERE file_path = ?",
		path,
	).Scan(&width, &height, &fileSize, &cachedFingerprint)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.Errorf(types.ErrCacheQueryFailed, "lookup failed: %v", err)
	}

	if cachedFingerprint != fingerprint {
		// File changed since caching; drop the stale record.
		if _, err := c.db.Exec("DELETE FROM image_metadata WHERE file_path = ?", path); err != nil {
			return nil, types.Errorf(types.ErrCacheWriteFailed, "failed to delete stale entry: %v", err)
		}
		return nil, nil
	}

	now := time.Now().UTC().Format(accessTimeLayout)
	if _, err := c.db.Exec(
		"UPDATE image_metadata SET last_accessed = ? WHERE file_path = ?",
		now, path,
	); err != nil {
		return nil, types.Errorf(types.ErrCacheWriteFailed, "failed to update last_accessed: %v", err)
	}

	return &types.ImageDimensions{Width: width, Height: height}, nil
}

// Set upserts unconditionally: the caller is asserting current truth, no
// fingerprint comparison happens on the write path. Eviction runs after every
// successful upsert so the capacity bound holds when Set returns.
func (c *SQLiteCache) Set(path, fingerprint string, width, height uint32, fileSize uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC().Format(accessTimeLayout)

	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO image_metadata (file_path, last_modified, width, height, file_size, last_accessed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		path, fingerprint, width, height, fileSize, now,
	)
	if err != nil {
		return types.Errorf(types.ErrCacheWriteFailed, "failed to insert cache entry: %v", err)
	}

	return c.evictIfNeeded()
}

// evictIfNeeded deletes the oldest records by last_accessed until the count is
// back under the capacity. The record just inserted carries the newest
// last_accessed and is never part of the batch while capacity is at least 1.
// Caller holds c.mu.
func (c *SQLiteCache) evictIfNeeded() error {
	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM image_metadata").Scan(&count); err != nil {
		return types.Errorf(types.ErrCacheQueryFailed, "failed to count entries: %v", err)
	}

	if count <= c.maxEntries {
		return nil
	}

	toDelete := count - c.maxEntries

	_, err := c.db.Exec(
		`DELETE FROM image_metadata WHERE file_path IN (
			SELECT file_path FROM image_metadata ORDER BY last_accessed ASC LIMIT ?
		)`,
		toDelete,
	)
	if err != nil {
		return types.Errorf(types.ErrCacheWriteFailed, "failed to evict entries: %v", err)
	}

	c.logger.Debug("Evicted least recently used cache entries", zap.Int("count", toDelete))

	if c.broker != nil {
		c.broker.Publish(types.EventCacheEvicted, map[string]int{"evicted": toDelete})
	}

	return nil
}

func (c *SQLiteCache) Stats() (types.CacheStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM image_metadata").Scan(&count); err != nil {
		return types.CacheStats{}, types.Errorf(types.ErrCacheQueryFailed, "failed to count entries: %v", err)
	}

	return types.CacheStats{
		EntryCount: count,
		MaxEntries: c.maxEntries,
	}, nil
}

func (c *SQLiteCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM image_metadata"); err != nil {
		return types.Errorf(types.ErrCacheWriteFailed, "failed to clear cache: %v", err)
	}

	c.logger.Info("Metadata cache cleared")
	return nil
}

// Flush merges the write-ahead log into the primary database file, bounding
// data loss on abrupt termination.
func (c *SQLiteCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return types.Errorf(types.ErrCacheFlushFailed, "failed to checkpoint WAL: %v", err)
	}

	c.logger.Debug("Metadata cache flushed to disk")
	return nil
}
