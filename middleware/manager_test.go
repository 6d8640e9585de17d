package middleware

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/lumenview/lumenview/config"
	"github.com/lumenview/lumenview/logger"
	"github.com/lumenview/lumenview/types"
)

func newTestConfig(t *testing.T, content string) types.ConfigManager {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	manager, err := config.NewConfigurationManager(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to build configuration manager: %v", err)
	}
	return manager
}

func TestCORSParamsFromConfig(t *testing.T) {
	cfg := newTestConfig(t, `
name: "lumenview"
version: "1.0.0"
middlewares:
  enabled: true
  cors:
    enabled: true
    weight: 30
    params:
      allowed_origins: ["http://localhost:5173"]
      max_age: 600
`)

	cm := NewCORSMiddleware(cfg, logger.NewZapWrapper(zap.NewNop()))

	if cm.allowsAll {
		t.Fatal("expected origin allowlist, got wildcard")
	}
	if !cm.allowedOriginsMap["http://localhost:5173"] {
		t.Fatalf("expected configured origin to be allowed, got %v", cm.allowedOriginsMap)
	}
	if cm.maxAgeStr != "600" {
		t.Fatalf("unexpected max age: %s", cm.maxAgeStr)
	}
}

func TestAuthWithoutParamsKeepsDefaults(t *testing.T) {
	cfg := newTestConfig(t, `
name: "lumenview"
version: "1.0.0"
middlewares:
  enabled: true
  auth:
    enabled: true
    weight: 50
`)

	am := NewAuthMiddleware(cfg, logger.NewZapWrapper(zap.NewNop()))

	if am.authConfig.Token != "" {
		t.Fatalf("expected empty token, got %q", am.authConfig.Token)
	}
	if len(am.authConfig.SkipPaths) != 2 || am.authConfig.SkipPaths[0] != "/health" {
		t.Fatalf("expected default skip paths, got %v", am.authConfig.SkipPaths)
	}
}

func TestChainOrderedByWeight(t *testing.T) {
	cfg := newTestConfig(t, `
name: "lumenview"
version: "1.0.0"
middlewares:
  enabled: true
  recovery:
    enabled: true
    weight: 10
  logging:
    enabled: true
    weight: 20
  cors:
    enabled: true
    weight: 30
`)

	m := NewManager(cfg, logger.NewZapWrapper(zap.NewNop()), nil)

	names := m.Names()
	want := []string{"recovery", "logging", "cors"}
	if len(names) < len(want) {
		t.Fatalf("expected at least %d middlewares, got %v", len(want), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("expected %s at position %d, got %v", name, i, names)
		}
	}
}
