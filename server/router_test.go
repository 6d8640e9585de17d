package server

import (
	"testing"

	"github.com/valyala/fasthttp"
)

func makeRequestCtx(method, uri string) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)

	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	return ctx
}

func TestStaticRouteLookup(t *testing.T) {
	router := NewRouter()
	router.Route("GET", "/api/v1/supported-types", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
	})

	if _, ok := router.Lookup("GET", "/api/v1/supported-types"); !ok {
		t.Fatal("expected static route to resolve")
	}
	if _, ok := router.Lookup("POST", "/api/v1/supported-types"); ok {
		t.Fatal("method mismatch must not resolve")
	}
	if _, ok := router.Lookup("GET", "/api/v1/unknown"); ok {
		t.Fatal("unknown path must not resolve")
	}
}

func TestTrailingSlashNormalization(t *testing.T) {
	router := NewRouter()
	router.Route("GET", "/api/v1/sessions", func(ctx *fasthttp.RequestCtx) {})

	if _, ok := router.Lookup("GET", "/api/v1/sessions/"); !ok {
		t.Fatal("trailing slash should resolve to the same route")
	}
}

func TestDynamicRouteParams(t *testing.T) {
	router := NewRouter()

	var gotID string
	router.Route("GET", "/api/v1/sessions/{id}", func(ctx *fasthttp.RequestCtx) {
		gotID, _ = ctx.UserValue("id").(string)
	})

	ctx := makeRequestCtx("GET", "http://localhost/api/v1/sessions/abc-123")
	router.Handler()(ctx)

	if gotID != "abc-123" {
		t.Fatalf("expected path param abc-123, got %q", gotID)
	}
}

func TestDynamicRouteNestedSegment(t *testing.T) {
	router := NewRouter()

	called := false
	router.Route("POST", "/api/v1/sessions/{id}/export", func(ctx *fasthttp.RequestCtx) {
		called = true
	})

	ctx := makeRequestCtx("POST", "http://localhost/api/v1/sessions/s1/export")
	router.Handler()(ctx)

	if !called {
		t.Fatal("expected nested dynamic route to match")
	}

	ctx = makeRequestCtx("POST", "http://localhost/api/v1/sessions/s1/delete")
	router.Handler()(ctx)
	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404 for unmatched tail, got %d", ctx.Response.StatusCode())
	}
}

func TestNotFoundResponse(t *testing.T) {
	router := NewRouter()

	ctx := makeRequestCtx("GET", "http://localhost/nope")
	router.Handler()(ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusNotFound {
		t.Fatalf("expected 404, got %d", ctx.Response.StatusCode())
	}
}

func TestGroupPrefix(t *testing.T) {
	router := NewRouter()

	group := router.Group("/api/v1")
	group.Route("GET", "/browse", func(ctx *fasthttp.RequestCtx) {})

	if _, ok := router.Lookup("GET", "/api/v1/browse"); !ok {
		t.Fatal("expected grouped route under prefix")
	}
}
