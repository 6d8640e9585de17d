package types

import (
	"github.com/valyala/fasthttp"
)

type FastHTTPHandler func(ctx *fasthttp.RequestCtx)

type HTTPServer interface {
	LifecycleManager
}

type HTTPRouter interface {
	Route(method, path string, handler FastHTTPHandler)
	Group(prefix string) RouteGroup
	Lookup(method, path string) (FastHTTPHandler, bool)
}

type RouteGroup interface {
	Route(method, path string, handler FastHTTPHandler)
}

// HTTPMiddleware wraps route handlers. Middlewares are ordered by weight,
// lowest first.
type HTTPMiddleware interface {
	Name() string
	Weight() int
	Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx))
}
