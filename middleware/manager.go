package middleware

import (
	"sort"
	"sync"

	"github.com/valyala/fasthttp"

	"github.com/lumenview/lumenview/types"
)

// Manager holds the middleware chain in weight order and wraps route
// handlers with it. The chain is rebuilt on registration, never per request.
type Manager struct {
	config      types.ConfigManager
	logger      types.Logger
	metrics     types.MetricsManager
	middlewares []types.HTTPMiddleware
	mu          sync.RWMutex
}

func NewManager(config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) *Manager {
	manager := &Manager{
		config:  config,
		logger:  logger,
		metrics: metrics,
	}

	manager.registerDefaults()

	return manager
}

func (m *Manager) registerDefaults() {
	middlewaresCfg := m.config.GetConfig().Middlewares
	if middlewaresCfg == nil || !middlewaresCfg.Enabled {
		return
	}

	if itemEnabled(middlewaresCfg.Recovery) {
		m.Register(NewRecoveryMiddleware(m.config, m.logger, m.metrics))
	}
	if itemEnabled(middlewaresCfg.Logging) {
		m.Register(NewLoggingMiddleware(m.config, m.logger, m.metrics))
	}
	if itemEnabled(middlewaresCfg.CORS) {
		m.Register(NewCORSMiddleware(m.config, m.logger))
	}
	if itemEnabled(middlewaresCfg.Compression) {
		m.Register(NewCompressionMiddleware(m.config, m.logger))
	}
	if itemEnabled(middlewaresCfg.Auth) {
		m.Register(NewAuthMiddleware(m.config, m.logger))
	}
}

func itemEnabled(item *types.MiddlewareItemConfig) bool {
	return item != nil && item.Enabled
}

func (m *Manager) Register(middleware types.HTTPMiddleware) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.middlewares = append(m.middlewares, middleware)
	sort.SliceStable(m.middlewares, func(i, j int) bool {
		return m.middlewares[i].Weight() < m.middlewares[j].Weight()
	})
}

func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.middlewares))
	for _, mw := range m.middlewares {
		names = append(names, mw.Name())
	}
	return names
}

// Wrap returns handler with the full chain applied, outermost first.
func (m *Manager) Wrap(handler types.FastHTTPHandler) types.FastHTTPHandler {
	m.mu.RLock()
	chain := make([]types.HTTPMiddleware, len(m.middlewares))
	copy(chain, m.middlewares)
	m.mu.RUnlock()

	wrapped := handler
	for i := len(chain) - 1; i >= 0; i-- {
		mw := chain[i]
		next := wrapped
		wrapped = func(ctx *fasthttp.RequestCtx) {
			mw.Handle(ctx, next)
		}
	}

	return wrapped
}
