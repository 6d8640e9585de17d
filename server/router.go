package server

import (
	"strings"
	"sync"

	"github.com/valyala/fasthttp"

	"github.com/lumenview/lumenview/types"
)

// Router resolves static paths through a map and falls back to segment
// matching for patterns with {param} placeholders. Parameters land in the
// request's user values.
type Router struct {
	static  map[string]types.FastHTTPHandler
	dynamic []dynamicRoute
	mu      sync.RWMutex
}

type dynamicRoute struct {
	method     string
	segments   []string
	paramNames []string
	handler    types.FastHTTPHandler
}

func NewRouter() *Router {
	return &Router{
		static: make(map[string]types.FastHTTPHandler),
	}
}

func (r *Router) Route(method, path string, handler types.FastHTTPHandler) {
	if handler == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !strings.Contains(path, "{") {
		r.static[routeKey(method, path)] = handler
		return
	}

	segments := splitPath(path)
	var paramNames []string
	for _, seg := range segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			paramNames = append(paramNames, seg[1:len(seg)-1])
		}
	}

	r.dynamic = append(r.dynamic, dynamicRoute{
		method:     method,
		segments:   segments,
		paramNames: paramNames,
		handler:    handler,
	})
}

func (r *Router) Group(prefix string) types.RouteGroup {
	return &routeGroup{router: r, prefix: strings.TrimSuffix(prefix, "/")}
}

func (r *Router) Lookup(method, path string) (types.FastHTTPHandler, bool) {
	handler, _, ok := r.resolve(method, path)
	return handler, ok
}

func (r *Router) resolve(method, path string) (types.FastHTTPHandler, map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if handler, ok := r.static[routeKey(method, normalizePath(path))]; ok {
		return handler, nil, true
	}

	pathSegments := splitPath(path)
	for _, route := range r.dynamic {
		if route.method != method || len(route.segments) != len(pathSegments) {
			continue
		}

		var params map[string]string
		matched := true
		paramIdx := 0

		for i, seg := range route.segments {
			if strings.HasPrefix(seg, "{") {
				if params == nil {
					params = make(map[string]string, len(route.paramNames))
				}
				params[route.paramNames[paramIdx]] = pathSegments[i]
				paramIdx++
				continue
			}
			if seg != pathSegments[i] {
				matched = false
				break
			}
		}

		if matched {
			return route.handler, params, true
		}
	}

	return nil, nil, false
}

// Handler returns the fasthttp entry point dispatching into the route table.
func (r *Router) Handler() types.FastHTTPHandler {
	return func(ctx *fasthttp.RequestCtx) {
		method := string(ctx.Method())
		path := string(ctx.Path())

		handler, params, ok := r.resolve(method, path)
		if !ok {
			if method == fasthttp.MethodOptions {
				ctx.SetStatusCode(fasthttp.StatusNoContent)
				return
			}
			ctx.Error("Not found", fasthttp.StatusNotFound)
			return
		}

		for name, value := range params {
			ctx.SetUserValue(name, value)
		}

		handler(ctx)
	}
}

type routeGroup struct {
	router *Router
	prefix string
}

func (g *routeGroup) Route(method, path string, handler types.FastHTTPHandler) {
	g.router.Route(method, g.prefix+path, handler)
}

func routeKey(method, path string) string {
	return method + ":" + path
}

func normalizePath(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return strings.TrimSuffix(path, "/")
	}
	return path
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
