package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/lumenview/lumenview/logger"
	"github.com/lumenview/lumenview/types"
)

type stubConfig struct {
	cfg types.ServiceConfig
}

func (s *stubConfig) Load() error                     { return nil }
func (s *stubConfig) GetConfig() *types.ServiceConfig { return &s.cfg }
func (s *stubConfig) GetValue(string, interface{}) interface{} {
	return nil
}
func (s *stubConfig) GetAs(string, interface{}) error { return nil }

func newTestStore(t *testing.T) types.SessionStore {
	t.Helper()

	config := &stubConfig{cfg: types.ServiceConfig{
		Name:    "lumenview",
		Session: &types.SessionConfig{Path: filepath.Join(t.TempDir(), "sessions")},
	}}

	store, err := NewCloverStore(context.Background(), config, logger.NewZapWrapper(zap.NewNop()), nil)
	if err != nil {
		t.Fatalf("failed to open session store: %v", err)
	}
	if err := store.Start(); err != nil {
		t.Fatalf("failed to start session store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Stop()
	})

	return store
}

func sampleSession(name string) types.SessionData {
	return types.SessionData{
		Name: name,
		Tabs: []types.SessionTab{
			{ID: "tab-1", ImagePath: "/pictures/a.png", Order: 0},
			{ID: "tab-2", ImagePath: "/pictures/b.jpg", Order: 1},
		},
		ActiveTabID: "tab-2",
	}
}

func TestAutoSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	loaded, err := store.LoadAuto(ctx)
	if err != nil {
		t.Fatalf("LoadAuto failed: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected no auto session initially, got %+v", loaded)
	}

	if err := store.SaveAuto(ctx, sampleSession("")); err != nil {
		t.Fatalf("SaveAuto failed: %v", err)
	}

	loaded, err = store.LoadAuto(ctx)
	if err != nil {
		t.Fatalf("LoadAuto failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected auto session after save")
	}
	if len(loaded.Tabs) != 2 || loaded.ActiveTabID != "tab-2" {
		t.Fatalf("unexpected auto session: %+v", loaded)
	}
}

func TestAutoSessionOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveAuto(ctx, sampleSession("")); err != nil {
		t.Fatal(err)
	}

	updated := types.SessionData{
		Tabs:        []types.SessionTab{{ID: "tab-9", ImagePath: "/pictures/z.png", Order: 0}},
		ActiveTabID: "tab-9",
	}
	if err := store.SaveAuto(ctx, updated); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadAuto(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Tabs) != 1 || loaded.Tabs[0].ID != "tab-9" {
		t.Fatalf("expected overwritten auto session, got %+v", loaded)
	}
}

func TestNamedSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, sampleSession("work"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated session id")
	}

	loaded, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Name != "work" || len(loaded.Tabs) != 2 {
		t.Fatalf("unexpected session: %+v", loaded)
	}

	if _, err := store.Save(ctx, sampleSession("personal")); err != nil {
		t.Fatal(err)
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := store.Load(ctx, id); !types.IsError(err, types.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestAutoSessionExcludedFromList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveAuto(ctx, sampleSession("")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(ctx, sampleSession("named")); err != nil {
		t.Fatal(err)
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].Name != "named" {
		t.Fatalf("expected only the named session, got %+v", sessions)
	}
}

func TestDeleteMissingSession(t *testing.T) {
	store := newTestStore(t)

	if err := store.Delete(context.Background(), "no-such-id"); !types.IsError(err, types.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, sampleSession("travel"))
	if err != nil {
		t.Fatal(err)
	}

	exportPath := filepath.Join(t.TempDir(), "travel.json")
	if err := store.Export(ctx, id, exportPath); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	imported, err := store.Import(ctx, exportPath)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if imported.ID == id {
		t.Fatal("imported session must get a fresh id")
	}
	if imported.Name != "travel" || len(imported.Tabs) != 2 {
		t.Fatalf("unexpected imported session: %+v", imported)
	}

	sessions, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected original plus imported, got %d", len(sessions))
	}
}

func TestImportMalformedFile(t *testing.T) {
	store := newTestStore(t)

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Import(context.Background(), path); !types.IsError(err, types.ErrSessionImportFailed) {
		t.Fatalf("expected ErrSessionImportFailed, got %v", err)
	}
}

func TestStoreDefaultsToDataDir(t *testing.T) {
	dataDir := t.TempDir()
	config := &stubConfig{cfg: types.ServiceConfig{
		Name:    "lumenview",
		DataDir: dataDir,
	}}

	store, err := NewCloverStore(context.Background(), config, logger.NewZapWrapper(zap.NewNop()), nil)
	if err != nil {
		t.Fatalf("failed to open session store: %v", err)
	}
	if err := store.Start(); err != nil {
		t.Fatalf("failed to start session store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Stop()
	})

	if _, err := os.Stat(filepath.Join(dataDir, "sessions")); err != nil {
		t.Fatalf("expected session store under data dir: %v", err)
	}
}
