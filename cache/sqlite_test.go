package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lumenview/lumenview/logger"
	"github.com/lumenview/lumenview/types"
)

func newTestCache(t *testing.T, dbPath string, maxEntries int) types.MetadataCache {
	t.Helper()

	c, err := NewSQLiteCache(context.Background(), logger.NewZapWrapper(zap.NewNop()), &types.CacheConfig{
		Enabled: true,
		Type:    "sqlite",
		Config: &SQLiteConfig{
			Path:       dbPath,
			MaxEntries: maxEntries,
		},
	}, "", nil)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	if err := c.Start(); err != nil {
		t.Fatalf("failed to start cache: %v", err)
	}

	t.Cleanup(func() {
		if c.IsRunning() {
			_ = c.Stop()
		}
	})

	return c
}

func TestHitAfterSet(t *testing.T) {
	c := newTestCache(t, filepath.Join(t.TempDir(), "metadata.db"), 10)

	if err := c.Set("/photos/a.jpg", "2024-01-01T10:00:00Z", 1920, 1080, 524288); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	dims, err := c.Get("/photos/a.jpg", "2024-01-01T10:00:00Z")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if dims == nil {
		t.Fatal("expected hit, got miss")
	}
	if dims.Width != 1920 || dims.Height != 1080 {
		t.Fatalf("wrong dimensions: %dx%d", dims.Width, dims.Height)
	}
}

func TestMissOnUnknownPath(t *testing.T) {
	c := newTestCache(t, filepath.Join(t.TempDir(), "metadata.db"), 10)

	dims, err := c.Get("/never/seen.png", "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dims != nil {
		t.Fatalf("expected miss, got %+v", dims)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.EntryCount != 0 {
		t.Fatalf("miss must have no side effect, entry_count = %d", stats.EntryCount)
	}
}

func TestInvalidationOnFingerprintChange(t *testing.T) {
	c := newTestCache(t, filepath.Join(t.TempDir(), "metadata.db"), 10)

	if err := c.Set("/photos/a.jpg", "t1", 800, 600, 1000); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	dims, err := c.Get("/photos/a.jpg", "t2")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if dims != nil {
		t.Fatal("stale record must be reported as a miss")
	}

	// The stale record was deleted, not just ignored.
	dims, err = c.Get("/photos/a.jpg", "t1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if dims != nil {
		t.Fatal("stale record must have been deleted")
	}
}

func TestCapacityBound(t *testing.T) {
	c := newTestCache(t, filepath.Join(t.TempDir(), "metadata.db"), 2)

	for _, path := range []string{"/a.jpg", "/b.jpg", "/c.jpg"} {
		if err := c.Set(path, "t1", 100, 100, 100); err != nil {
			t.Fatalf("set %s failed: %v", path, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.EntryCount > 2 {
		t.Fatalf("capacity exceeded: %d > 2", stats.EntryCount)
	}

	if dims, _ := c.Get("/a.jpg", "t1"); dims != nil {
		t.Fatal("oldest entry /a.jpg should have been evicted")
	}
	if dims, _ := c.Get("/b.jpg", "t1"); dims == nil {
		t.Fatal("/b.jpg should still be cached")
	}
	if dims, _ := c.Get("/c.jpg", "t1"); dims == nil {
		t.Fatal("/c.jpg should still be cached")
	}
}

func TestLRUOrdering(t *testing.T) {
	c := newTestCache(t, filepath.Join(t.TempDir(), "metadata.db"), 2)

	if err := c.Set("/a.jpg", "t1", 100, 100, 100); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := c.Set("/b.jpg", "t1", 100, 100, 100); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	// Touch /a.jpg so /b.jpg becomes the oldest.
	if dims, err := c.Get("/a.jpg", "t1"); err != nil || dims == nil {
		t.Fatalf("expected hit on /a.jpg: dims=%v err=%v", dims, err)
	}
	time.Sleep(2 * time.Millisecond)

	if err := c.Set("/c.jpg", "t1", 100, 100, 100); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if dims, _ := c.Get("/b.jpg", "t1"); dims != nil {
		t.Fatal("/b.jpg should have been evicted")
	}
	if dims, _ := c.Get("/a.jpg", "t1"); dims == nil {
		t.Fatal("/a.jpg should have survived eviction")
	}
	if dims, _ := c.Get("/c.jpg", "t1"); dims == nil {
		t.Fatal("/c.jpg should have survived eviction")
	}
}

func TestIdempotentReSet(t *testing.T) {
	c := newTestCache(t, filepath.Join(t.TempDir(), "metadata.db"), 10)

	for i := 0; i < 2; i++ {
		if err := c.Set("/a.jpg", "t1", 640, 480, 2048); err != nil {
			t.Fatalf("set %d failed: %v", i, err)
		}
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.EntryCount != 1 {
		t.Fatalf("expected exactly one record, got %d", stats.EntryCount)
	}

	dims, err := c.Get("/a.jpg", "t1")
	if err != nil || dims == nil {
		t.Fatalf("expected hit: dims=%v err=%v", dims, err)
	}
	if dims.Width != 640 || dims.Height != 480 {
		t.Fatalf("field values changed: %dx%d", dims.Width, dims.Height)
	}
}

func TestFlushDurability(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "metadata.db")

	c1 := newTestCache(t, dbPath, 10)
	if err := c1.Set("/a.jpg", "t1", 320, 240, 999); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := c1.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if err := c1.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	c2 := newTestCache(t, dbPath, 10)
	dims, err := c2.Get("/a.jpg", "t1")
	if err != nil {
		t.Fatalf("get after reopen failed: %v", err)
	}
	if dims == nil {
		t.Fatal("record did not survive flush and reopen")
	}
	if dims.Width != 320 || dims.Height != 240 {
		t.Fatalf("wrong dimensions after reopen: %dx%d", dims.Width, dims.Height)
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t, filepath.Join(t.TempDir(), "metadata.db"), 10)

	if err := c.Set("/a.jpg", "t1", 100, 100, 100); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.EntryCount != 0 {
		t.Fatalf("expected empty cache, got %d entries", stats.EntryCount)
	}
}

func TestStats(t *testing.T) {
	c := newTestCache(t, filepath.Join(t.TempDir(), "metadata.db"), 5)

	stats, err := c.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.MaxEntries != 5 || stats.EntryCount != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := c.Set("/a.jpg", "t1", 100, 100, 100); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	stats, err = c.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.EntryCount != 1 {
		t.Fatalf("expected 1 entry, got %d", stats.EntryCount)
	}
}

func TestZeroCapacityRejected(t *testing.T) {
	_, err := NewSQLiteCache(context.Background(), logger.NewZapWrapper(zap.NewNop()), &types.CacheConfig{
		Enabled: true,
		Type:    "sqlite",
		Config: &SQLiteConfig{
			Path:       filepath.Join(t.TempDir(), "metadata.db"),
			MaxEntries: 0,
		},
	}, "", nil)
	if !types.IsError(err, types.ErrCacheZeroCapacity) {
		t.Fatalf("expected ErrCacheZeroCapacity, got %v", err)
	}
}

func TestUnopenablePathFails(t *testing.T) {
	// A regular file where the cache directory should be.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create blocker file: %v", err)
	}

	_, err := NewSQLiteCache(context.Background(), logger.NewZapWrapper(zap.NewNop()), &types.CacheConfig{
		Enabled: true,
		Type:    "sqlite",
		Config: &SQLiteConfig{
			Path:       filepath.Join(blocker, "sub", "metadata.db"),
			MaxEntries: 10,
		},
	}, "", nil)
	if !types.IsError(err, types.ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable, got %v", err)
	}
}

func TestDefaultPathUnderStateDir(t *testing.T) {
	dir := t.TempDir()

	c, err := NewSQLiteCache(context.Background(), logger.NewZapWrapper(zap.NewNop()), &types.CacheConfig{
		Enabled: true,
		Type:    "sqlite",
	}, dir, nil)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() {
		if c.IsRunning() {
			_ = c.Stop()
		}
	})

	if _, err := os.Stat(filepath.Join(dir, "metadata.db")); err != nil {
		t.Fatalf("expected database under state dir: %v", err)
	}
}

func TestNoPathAndNoStateDirRejected(t *testing.T) {
	_, err := NewSQLiteCache(context.Background(), logger.NewZapWrapper(zap.NewNop()), &types.CacheConfig{
		Enabled: true,
		Type:    "sqlite",
	}, "", nil)
	if !types.IsError(err, types.ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable, got %v", err)
	}
}
