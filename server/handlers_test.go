package server

import (
	"context"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lumenview/lumenview/logger"
	"github.com/lumenview/lumenview/types"
	"github.com/lumenview/lumenview/utils"
)

type stubLibrary struct{}

func (s *stubLibrary) BrowseFolder(context.Context, string) ([]types.FileEntry, error) {
	return []types.FileEntry{{Name: "a.png", IsImage: true}}, nil
}

func (s *stubLibrary) ReadImage(context.Context, string) (*types.ImageData, error) {
	return &types.ImageData{Name: "a.png", Dimensions: types.ImageDimensions{Width: 4, Height: 3}}, nil
}

func (s *stubLibrary) ReadFolderImages(context.Context, string) ([]types.ImageData, error) {
	return nil, nil
}

func (s *stubLibrary) SupportedTypes() []string {
	return []string{"jpg", "png"}
}

type stubSessions struct {
	saved *types.SessionData
}

func (s *stubSessions) Start() error    { return nil }
func (s *stubSessions) Stop() error     { return nil }
func (s *stubSessions) IsRunning() bool { return true }

func (s *stubSessions) SaveAuto(_ context.Context, session types.SessionData) error {
	s.saved = &session
	return nil
}

func (s *stubSessions) LoadAuto(context.Context) (*types.SessionData, error) {
	return s.saved, nil
}

func (s *stubSessions) Save(_ context.Context, session types.SessionData) (string, error) {
	s.saved = &session
	return "id-1", nil
}

func (s *stubSessions) Load(_ context.Context, id string) (*types.SessionData, error) {
	if s.saved == nil {
		return nil, types.ErrSessionNotFound
	}
	return s.saved, nil
}

func (s *stubSessions) List(context.Context) ([]types.SessionData, error) { return nil, nil }
func (s *stubSessions) Delete(_ context.Context, id string) error {
	if id == "missing" {
		return types.ErrSessionNotFound
	}
	return nil
}
func (s *stubSessions) Export(context.Context, string, string) error { return nil }
func (s *stubSessions) Import(context.Context, string) (*types.SessionData, error) {
	return nil, types.ErrSessionImportFailed
}

type stubCache struct{}

func (c *stubCache) Start() error    { return nil }
func (c *stubCache) Stop() error     { return nil }
func (c *stubCache) IsRunning() bool { return true }
func (c *stubCache) Get(string, string) (*types.ImageDimensions, error) {
	return nil, nil
}
func (c *stubCache) Set(string, string, uint32, uint32, uint64) error { return nil }
func (c *stubCache) Stats() (types.CacheStats, error) {
	return types.CacheStats{EntryCount: 5, MaxEntries: 100}, nil
}
func (c *stubCache) Clear() error { return nil }
func (c *stubCache) Flush() error { return nil }

func newTestAPI() (*API, *Router) {
	api := NewAPI(
		logger.NewZapWrapper(zap.NewNop()),
		&stubLibrary{},
		&stubSessions{},
		&stubCache{},
		nil,
	)
	router := NewRouter()
	api.RegisterRoutes(router)
	return api, router
}

func TestBrowseRequiresPath(t *testing.T) {
	_, router := newTestAPI()

	ctx := makeRequestCtx("GET", "http://localhost/api/v1/browse")
	router.Handler()(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("expected 400 without path, got %d", ctx.Response.StatusCode())
	}
}

func TestBrowseReturnsEntries(t *testing.T) {
	_, router := newTestAPI()

	ctx := makeRequestCtx("GET", "http://localhost/api/v1/browse?path=/pictures")
	router.Handler()(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected 200, got %d", ctx.Response.StatusCode())
	}
	if !strings.Contains(string(ctx.Response.Body()), "a.png") {
		t.Fatalf("expected entries in body, got %s", ctx.Response.Body())
	}
}

func TestSupportedTypesEndpoint(t *testing.T) {
	_, router := newTestAPI()

	ctx := makeRequestCtx("GET", "http://localhost/api/v1/supported-types")
	router.Handler()(ctx)

	var body struct {
		Types []string `json:"types"`
	}
	if err := utils.Unmarshal(ctx.Response.Body(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(body.Types) != 2 {
		t.Fatalf("expected 2 types, got %+v", body.Types)
	}
}

func TestAutoSessionRoundTripOverHTTP(t *testing.T) {
	_, router := newTestAPI()

	// No session saved yet.
	ctx := makeRequestCtx("GET", "http://localhost/api/v1/session/auto")
	router.Handler()(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404 before save, got %d", ctx.Response.StatusCode())
	}

	ctx = makeRequestCtx("POST", "http://localhost/api/v1/session/auto")
	ctx.Request.SetBodyString(`{"tabs":[{"id":"t1","image_path":"/p/a.png","order":0}],"active_tab_id":"t1"}`)
	router.Handler()(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected 200 on save, got %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}

	ctx = makeRequestCtx("GET", "http://localhost/api/v1/session/auto")
	router.Handler()(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected 200 after save, got %d", ctx.Response.StatusCode())
	}
	if !strings.Contains(string(ctx.Response.Body()), "t1") {
		t.Fatalf("expected saved session in body, got %s", ctx.Response.Body())
	}
}

func TestSaveAutoSessionRejectsMalformedBody(t *testing.T) {
	_, router := newTestAPI()

	ctx := makeRequestCtx("POST", "http://localhost/api/v1/session/auto")
	ctx.Request.SetBodyString("{broken")
	router.Handler()(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", ctx.Response.StatusCode())
	}
}

func TestDeleteMissingSessionOverHTTP(t *testing.T) {
	_, router := newTestAPI()

	ctx := makeRequestCtx("DELETE", "http://localhost/api/v1/sessions/missing")
	router.Handler()(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404 for missing session, got %d", ctx.Response.StatusCode())
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	_, router := newTestAPI()

	ctx := makeRequestCtx("GET", "http://localhost/api/v1/cache/stats")
	router.Handler()(ctx)

	var stats types.CacheStats
	if err := utils.Unmarshal(ctx.Response.Body(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.EntryCount != 5 || stats.MaxEntries != 100 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMetricsDisabled(t *testing.T) {
	_, router := newTestAPI()

	ctx := makeRequestCtx("GET", "http://localhost/metrics")
	router.Handler()(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404 with metrics disabled, got %d", ctx.Response.StatusCode())
	}
}
