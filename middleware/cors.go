package middleware

import (
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lumenview/lumenview/types"
)

type CORSMiddleware struct {
	logger            types.Logger
	corsConfig        *CORSConfig
	weight            int
	allowsAll         bool
	allowedOriginsMap map[string]bool
	allowedMethodsStr string
	allowedHeadersStr string
	maxAgeStr         string
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers"`
	MaxAge         int      `json:"max_age"`
}

func NewCORSMiddleware(config types.ConfigManager, logger types.Logger) *CORSMiddleware {
	// Desktop frontends load from app:// or tauri:// origins, so the default
	// policy is wide open on a loopback-only listener.
	corsConfig := &CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         86400,
	}

	item := config.GetConfig().Middlewares.CORS
	if err := config.GetAs("middlewares.cors.params", corsConfig); err != nil && !types.IsError(err, types.ErrConfigNotFound) {
		logger.Error("Failed to decode CORS middleware params", zap.Error(err))
	}

	cm := &CORSMiddleware{
		logger:            logger,
		corsConfig:        corsConfig,
		weight:            item.Weight,
		allowedOriginsMap: make(map[string]bool, len(corsConfig.AllowedOrigins)),
		allowedMethodsStr: strings.Join(corsConfig.AllowedMethods, ", "),
		allowedHeadersStr: strings.Join(corsConfig.AllowedHeaders, ", "),
		maxAgeStr:         strconv.Itoa(corsConfig.MaxAge),
	}

	for _, origin := range corsConfig.AllowedOrigins {
		if origin == "*" {
			cm.allowsAll = true
		}
		cm.allowedOriginsMap[origin] = true
	}

	return cm
}

func (c *CORSMiddleware) Name() string { return "cors" }
func (c *CORSMiddleware) Weight() int  { return c.weight }

func (c *CORSMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	origin := string(ctx.Request.Header.Peek("Origin"))
	if origin == "" {
		next(ctx)
		return
	}

	if !c.originAllowed(origin) {
		c.logger.Warn("CORS request blocked",
			zap.String("origin", origin),
			zap.ByteString("path", ctx.Path()))
		ctx.SetStatusCode(fasthttp.StatusForbidden)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"CORS policy violation","message":"Origin not allowed"}`)
		return
	}

	allowOrigin := origin
	if c.allowsAll {
		allowOrigin = "*"
	}

	ctx.Response.Header.Set("Access-Control-Allow-Origin", allowOrigin)
	ctx.Response.Header.Set("Vary", "Origin")

	if string(ctx.Method()) == fasthttp.MethodOptions {
		ctx.Response.Header.Set("Access-Control-Allow-Methods", c.allowedMethodsStr)
		ctx.Response.Header.Set("Access-Control-Allow-Headers", c.allowedHeadersStr)
		ctx.Response.Header.Set("Access-Control-Max-Age", c.maxAgeStr)
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	next(ctx)
}

func (c *CORSMiddleware) originAllowed(origin string) bool {
	if c.allowsAll {
		return true
	}
	return c.allowedOriginsMap[origin]
}
