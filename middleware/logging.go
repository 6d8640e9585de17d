package middleware

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lumenview/lumenview/types"
)

type LoggingMiddleware struct {
	logger        types.Logger
	metrics       types.MetricsManager
	loggingConfig *LoggingConfig
	weight        int
}

type LoggingConfig struct {
	LogQuery bool `json:"log_query"`
}

func NewLoggingMiddleware(config types.ConfigManager, logger types.Logger, metrics types.MetricsManager) *LoggingMiddleware {
	loggingConfig := &LoggingConfig{
		LogQuery: true,
	}

	item := config.GetConfig().Middlewares.Logging
	if err := config.GetAs("middlewares.logging.params", loggingConfig); err != nil && !types.IsError(err, types.ErrConfigNotFound) {
		logger.Error("Failed to decode logging middleware params", zap.Error(err))
	}

	return &LoggingMiddleware{
		logger:        logger,
		metrics:       metrics,
		loggingConfig: loggingConfig,
		weight:        item.Weight,
	}
}

func (l *LoggingMiddleware) Name() string { return "logging" }
func (l *LoggingMiddleware) Weight() int  { return l.weight }

func (l *LoggingMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	start := time.Now()

	next(ctx)

	duration := time.Since(start)
	status := ctx.Response.StatusCode()

	fields := []zap.Field{
		zap.ByteString("method", ctx.Method()),
		zap.ByteString("path", ctx.Path()),
		zap.Int("status", status),
		zap.Duration("duration", duration),
	}
	if l.loggingConfig.LogQuery && len(ctx.QueryArgs().QueryString()) > 0 {
		fields = append(fields, zap.ByteString("query", ctx.QueryArgs().QueryString()))
	}

	if status >= fasthttp.StatusInternalServerError {
		l.logger.Error("Request completed", fields...)
	} else {
		l.logger.Debug("Request completed", fields...)
	}

	if l.metrics != nil {
		l.metrics.Counter("http_requests_total", map[string]string{
			"method": string(ctx.Method()),
			"status": strconv.Itoa(status),
		}).Inc()
		l.metrics.Histogram("http_request_duration_seconds",
			[]float64{0.001, 0.01, 0.1, 0.5, 1.0, 5.0},
			map[string]string{"method": string(ctx.Method())},
		).Observe(duration.Seconds())
	}
}
