package types

import (
	"path/filepath"
	"testing"
)

func TestStateDirPrefersDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := &ServiceConfig{Name: "lumenview", DataDir: dir}

	got, err := cfg.StateDir()
	if err != nil {
		t.Fatalf("StateDir failed: %v", err)
	}
	if got != dir {
		t.Fatalf("expected %s, got %s", dir, got)
	}
}

func TestStateDirFallsBackToUserConfigDir(t *testing.T) {
	cfg := &ServiceConfig{Name: "lumenview"}

	got, err := cfg.StateDir()
	if err != nil {
		t.Skipf("no user config dir in this environment: %v", err)
	}
	if filepath.Base(got) != "lumenview" {
		t.Fatalf("expected service-named directory, got %s", got)
	}
}
