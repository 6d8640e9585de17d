package middleware

import (
	"bytes"
	"compress/gzip"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lumenview/lumenview/types"
)

const (
	AlgorithmGzip   = "gzip"
	AlgorithmBrotli = "br"

	defaultCompressionLevel = 6
	defaultThreshold        = 1024
)

type CompressionMiddleware struct {
	logger            types.Logger
	compressionConfig *CompressionConfig
	weight            int
	gzipWriterPool    sync.Pool
	brotliWriterPool  sync.Pool
	bufPool           sync.Pool
}

type CompressionConfig struct {
	Algorithm    string   `json:"algorithm"`
	Level        int      `json:"level"`
	Threshold    int      `json:"threshold"`
	AllowedTypes []string `json:"allowed_types"`
}

func NewCompressionMiddleware(config types.ConfigManager, logger types.Logger) *CompressionMiddleware {
	compressionConfig := &CompressionConfig{
		Algorithm: AlgorithmBrotli,
		Level:     defaultCompressionLevel,
		Threshold: defaultThreshold,
		AllowedTypes: []string{
			"application/json",
			"text/*",
		},
	}

	item := config.GetConfig().Middlewares.Compression
	if err := config.GetAs("middlewares.compression.params", compressionConfig); err != nil && !types.IsError(err, types.ErrConfigNotFound) {
		logger.Error("Failed to decode compression middleware params", zap.Error(err))
	}

	if compressionConfig.Algorithm != AlgorithmGzip && compressionConfig.Algorithm != AlgorithmBrotli {
		logger.Warn("Unsupported compression algorithm, falling back to brotli",
			zap.String("algorithm", compressionConfig.Algorithm))
		compressionConfig.Algorithm = AlgorithmBrotli
	}

	cm := &CompressionMiddleware{
		logger:            logger,
		compressionConfig: compressionConfig,
		weight:            item.Weight,
	}

	level := compressionConfig.Level
	cm.gzipWriterPool = sync.Pool{
		New: func() interface{} {
			writer, _ := gzip.NewWriterLevel(nil, level)
			return writer
		},
	}
	cm.brotliWriterPool = sync.Pool{
		New: func() interface{} {
			return brotli.NewWriterLevel(nil, level)
		},
	}
	cm.bufPool = sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 4096))
		},
	}

	return cm
}

func (c *CompressionMiddleware) Name() string { return "compression" }
func (c *CompressionMiddleware) Weight() int  { return c.weight }

func (c *CompressionMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	next(ctx)

	acceptEncoding := string(ctx.Request.Header.Peek("Accept-Encoding"))
	if !strings.Contains(acceptEncoding, c.compressionConfig.Algorithm) {
		return
	}

	if len(ctx.Response.Header.Peek("Content-Encoding")) > 0 {
		return
	}

	if !c.shouldCompress(string(ctx.Response.Header.ContentType())) {
		return
	}

	body := ctx.Response.Body()
	if len(body) < c.compressionConfig.Threshold {
		return
	}

	compressed, err := c.compress(body)
	if err != nil {
		c.logger.Warn("Response compression failed", zap.Error(err))
		return
	}

	// Compression that barely shrinks the body isn't worth the decode cost.
	if len(compressed) >= len(body) {
		return
	}

	ctx.Response.Header.Set("Content-Encoding", c.compressionConfig.Algorithm)
	ctx.Response.Header.Add("Vary", "Accept-Encoding")
	ctx.Response.SetBody(compressed)
}

func (c *CompressionMiddleware) shouldCompress(contentType string) bool {
	if semicolon := strings.Index(contentType, ";"); semicolon != -1 {
		contentType = contentType[:semicolon]
	}
	contentType = strings.TrimSpace(strings.ToLower(contentType))

	for _, allowed := range c.compressionConfig.AllowedTypes {
		if allowed == contentType {
			return true
		}
		if strings.HasSuffix(allowed, "*") && strings.HasPrefix(contentType, strings.TrimSuffix(allowed, "*")) {
			return true
		}
	}
	return false
}

func (c *CompressionMiddleware) compress(data []byte) ([]byte, error) {
	buf := c.bufPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		c.bufPool.Put(buf)
	}()

	switch c.compressionConfig.Algorithm {
	case AlgorithmGzip:
		writer := c.gzipWriterPool.Get().(*gzip.Writer)
		writer.Reset(buf)
		defer c.gzipWriterPool.Put(writer)

		if _, err := writer.Write(data); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
	default:
		writer := c.brotliWriterPool.Get().(*brotli.Writer)
		writer.Reset(buf)
		defer c.brotliWriterPool.Put(writer)

		if _, err := writer.Write(data); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
	}

	return append([]byte(nil), buf.Bytes()...), nil
}
