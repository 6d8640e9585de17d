package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/lumenview/lumenview/logger"
	"github.com/lumenview/lumenview/types"
)

type stubConfigManager struct {
	config *types.ServiceConfig
}

func (s *stubConfigManager) Load() error                              { return nil }
func (s *stubConfigManager) GetConfig() *types.ServiceConfig          { return s.config }
func (s *stubConfigManager) GetValue(string, interface{}) interface{} { return nil }
func (s *stubConfigManager) GetAs(string, interface{}) error          { return types.ErrConfigNotFound }

func newStubConfig(cacheConfig *types.CacheConfig) types.ConfigManager {
	return &stubConfigManager{config: &types.ServiceConfig{
		Name:    "lumenview",
		Version: "test",
		Cache:   cacheConfig,
	}}
}

func TestManagerDisabledReturnsNoop(t *testing.T) {
	c, err := NewManager(context.Background(), newStubConfig(&types.CacheConfig{Enabled: false}),
		logger.NewZapWrapper(zap.NewNop()), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Set("/a.jpg", "t1", 1, 1, 1); err != nil {
		t.Fatalf("noop set must not fail: %v", err)
	}
	dims, err := c.Get("/a.jpg", "t1")
	if err != nil {
		t.Fatalf("noop get must not fail: %v", err)
	}
	if dims != nil {
		t.Fatal("noop cache must always miss")
	}
}

func TestManagerDegradesToNoopOnUnopenableStore(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create blocker file: %v", err)
	}

	c, err := NewManager(context.Background(), newStubConfig(&types.CacheConfig{
		Enabled: true,
		Type:    "sqlite",
		Config: &SQLiteConfig{
			Path:       filepath.Join(blocker, "sub", "metadata.db"),
			MaxEntries: 10,
		},
	}), logger.NewZapWrapper(zap.NewNop()), nil, nil)
	if err != nil {
		t.Fatalf("unavailable store must degrade, not fail: %v", err)
	}

	if err := c.Set("/a.jpg", "t1", 1, 1, 1); err != nil {
		t.Fatalf("degraded set must not fail: %v", err)
	}
	dims, err := c.Get("/a.jpg", "t1")
	if err != nil || dims != nil {
		t.Fatalf("degraded cache must always miss: dims=%v err=%v", dims, err)
	}
}

func TestManagerUnknownTypeFails(t *testing.T) {
	_, err := NewManager(context.Background(), newStubConfig(&types.CacheConfig{
		Enabled: true,
		Type:    "bolt",
	}), logger.NewZapWrapper(zap.NewNop()), nil, nil)
	if !types.IsError(err, types.ErrCacheTypeUnknown) {
		t.Fatalf("expected ErrCacheTypeUnknown, got %v", err)
	}
}
