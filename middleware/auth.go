package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lumenview/lumenview/types"
	"github.com/lumenview/lumenview/utils"
)

// AuthMiddleware guards the API with a static bearer token. It is meant for
// setups where the backend port is reachable by other local users, not as a
// general authentication layer.
type AuthMiddleware struct {
	logger     types.Logger
	authConfig *AuthConfig
	weight     int
}

type AuthConfig struct {
	Token     string   `json:"token"`
	SkipPaths []string `json:"skip_paths"`
}

func NewAuthMiddleware(config types.ConfigManager, logger types.Logger) *AuthMiddleware {
	authConfig := &AuthConfig{
		SkipPaths: []string{"/health", "/version"},
	}

	item := config.GetConfig().Middlewares.Auth
	if err := config.GetAs("middlewares.auth.params", authConfig); err != nil && !types.IsError(err, types.ErrConfigNotFound) {
		logger.Error("Failed to decode auth middleware params", zap.Error(err))
	}

	if authConfig.Token == "" {
		logger.Warn("Auth middleware enabled without a token, all requests will be rejected")
	}

	return &AuthMiddleware{
		logger:     logger,
		authConfig: authConfig,
		weight:     item.Weight,
	}
}

func (a *AuthMiddleware) Name() string { return "auth" }
func (a *AuthMiddleware) Weight() int  { return a.weight }

func (a *AuthMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	path := string(ctx.Path())
	for _, skip := range a.authConfig.SkipPaths {
		if path == skip {
			next(ctx)
			return
		}
	}

	header := string(ctx.Request.Header.Peek("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || !a.tokenMatches(token) {
		a.logger.Warn("Rejected unauthenticated request", zap.String("path", path))
		utils.CreateUnauthorizedResponse(ctx)
		return
	}

	next(ctx)
}

func (a *AuthMiddleware) tokenMatches(token string) bool {
	if a.authConfig.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(a.authConfig.Token)) == 1
}
