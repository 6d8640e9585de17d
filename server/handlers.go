package server

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/lumenview/lumenview/types"
	"github.com/lumenview/lumenview/utils"
)

// API wires the viewer operations onto the router under /api/v1.
type API struct {
	logger   types.Logger
	library  types.LibraryManager
	sessions types.SessionStore
	cache    types.MetadataCache
	metrics  types.MetricsManager
}

func NewAPI(
	logger types.Logger,
	library types.LibraryManager,
	sessions types.SessionStore,
	cache types.MetadataCache,
	metrics types.MetricsManager) *API {
	return &API{
		logger:   logger,
		library:  library,
		sessions: sessions,
		cache:    cache,
		metrics:  metrics,
	}
}

func (a *API) RegisterRoutes(router types.HTTPRouter) {
	api := router.Group("/api/v1")

	api.Route("GET", "/browse", a.handleBrowse)
	api.Route("GET", "/image", a.handleImage)
	api.Route("GET", "/folder-images", a.handleFolderImages)
	api.Route("GET", "/supported-types", a.handleSupportedTypes)

	api.Route("GET", "/session/auto", a.handleLoadAutoSession)
	api.Route("POST", "/session/auto", a.handleSaveAutoSession)

	api.Route("GET", "/sessions", a.handleListSessions)
	api.Route("POST", "/sessions", a.handleSaveSession)
	api.Route("GET", "/sessions/{id}", a.handleLoadSession)
	api.Route("DELETE", "/sessions/{id}", a.handleDeleteSession)
	api.Route("POST", "/sessions/{id}/export", a.handleExportSession)
	api.Route("POST", "/sessions/import", a.handleImportSession)

	api.Route("GET", "/cache/stats", a.handleCacheStats)
	api.Route("POST", "/cache/flush", a.handleCacheFlush)
	api.Route("POST", "/cache/clear", a.handleCacheClear)

	router.Route("GET", "/metrics", a.handleMetrics)
}

func (a *API) handleBrowse(ctx *fasthttp.RequestCtx) {
	path := string(ctx.QueryArgs().Peek("path"))
	if path == "" {
		utils.CreateBadRequestResponse(ctx, "missing path parameter")
		return
	}

	entries, err := a.library.BrowseFolder(ctx, path)
	if err != nil {
		a.writeLibraryError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"entries": entries})
}

func (a *API) handleImage(ctx *fasthttp.RequestCtx) {
	path := string(ctx.QueryArgs().Peek("path"))
	if path == "" {
		utils.CreateBadRequestResponse(ctx, "missing path parameter")
		return
	}

	data, err := a.library.ReadImage(ctx, path)
	if err != nil {
		a.writeLibraryError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, data)
}

func (a *API) handleFolderImages(ctx *fasthttp.RequestCtx) {
	path := string(ctx.QueryArgs().Peek("path"))
	if path == "" {
		utils.CreateBadRequestResponse(ctx, "missing path parameter")
		return
	}

	images, err := a.library.ReadFolderImages(ctx, path)
	if err != nil {
		a.writeLibraryError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"images": images})
}

func (a *API) handleSupportedTypes(ctx *fasthttp.RequestCtx) {
	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"types": a.library.SupportedTypes(),
	})
}

func (a *API) handleLoadAutoSession(ctx *fasthttp.RequestCtx) {
	session, err := a.sessions.LoadAuto(ctx)
	if err != nil {
		a.logger.Error("Failed to load auto session", zap.Error(err))
		utils.CreateErrorResponse(ctx, "failed to load session")
		return
	}
	if session == nil {
		utils.CreateNotFoundResponse(ctx, "no auto session saved")
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, session)
}

func (a *API) handleSaveAutoSession(ctx *fasthttp.RequestCtx) {
	var session types.SessionData
	if err := utils.Unmarshal(ctx.PostBody(), &session); err != nil {
		utils.CreateBadRequestResponse(ctx, "malformed session body")
		return
	}

	if err := a.sessions.SaveAuto(ctx, session); err != nil {
		a.logger.Error("Failed to save auto session", zap.Error(err))
		utils.CreateErrorResponse(ctx, "failed to save session")
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "saved"})
}

func (a *API) handleListSessions(ctx *fasthttp.RequestCtx) {
	sessions, err := a.sessions.List(ctx)
	if err != nil {
		a.logger.Error("Failed to list sessions", zap.Error(err))
		utils.CreateErrorResponse(ctx, "failed to list sessions")
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (a *API) handleSaveSession(ctx *fasthttp.RequestCtx) {
	var session types.SessionData
	if err := utils.Unmarshal(ctx.PostBody(), &session); err != nil {
		utils.CreateBadRequestResponse(ctx, "malformed session body")
		return
	}

	id, err := a.sessions.Save(ctx, session)
	if err != nil {
		a.logger.Error("Failed to save session", zap.Error(err))
		utils.CreateErrorResponse(ctx, "failed to save session")
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusCreated, map[string]string{"id": id})
}

func (a *API) handleLoadSession(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	session, err := a.sessions.Load(ctx, id)
	if err != nil {
		a.writeSessionError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, session)
}

func (a *API) handleDeleteSession(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	if err := a.sessions.Delete(ctx, id); err != nil {
		a.writeSessionError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) handleExportSession(ctx *fasthttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)

	var body struct {
		Path string `json:"path"`
	}
	if err := utils.Unmarshal(ctx.PostBody(), &body); err != nil || body.Path == "" {
		utils.CreateBadRequestResponse(ctx, "missing export path")
		return
	}

	if err := a.sessions.Export(ctx, id, body.Path); err != nil {
		a.writeSessionError(ctx, err)
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "exported", "path": body.Path})
}

func (a *API) handleImportSession(ctx *fasthttp.RequestCtx) {
	var body struct {
		Path string `json:"path"`
	}
	if err := utils.Unmarshal(ctx.PostBody(), &body); err != nil || body.Path == "" {
		utils.CreateBadRequestResponse(ctx, "missing import path")
		return
	}

	session, err := a.sessions.Import(ctx, body.Path)
	if err != nil {
		if types.IsError(err, types.ErrSessionImportFailed) {
			utils.CreateBadRequestResponse(ctx, "unreadable session file")
			return
		}
		a.logger.Error("Failed to import session", zap.Error(err))
		utils.CreateErrorResponse(ctx, "failed to import session")
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusCreated, session)
}

func (a *API) handleCacheStats(ctx *fasthttp.RequestCtx) {
	stats, err := a.cache.Stats()
	if err != nil {
		a.logger.Error("Failed to read cache stats", zap.Error(err))
		utils.CreateErrorResponse(ctx, "failed to read cache stats")
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, stats)
}

func (a *API) handleCacheFlush(ctx *fasthttp.RequestCtx) {
	if err := a.cache.Flush(); err != nil {
		a.logger.Error("Cache flush failed", zap.Error(err))
		utils.CreateErrorResponse(ctx, "cache flush failed")
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "flushed"})
}

func (a *API) handleCacheClear(ctx *fasthttp.RequestCtx) {
	if err := a.cache.Clear(); err != nil {
		a.logger.Error("Cache clear failed", zap.Error(err))
		utils.CreateErrorResponse(ctx, "cache clear failed")
		return
	}

	utils.WriteJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "cleared"})
}

func (a *API) handleMetrics(ctx *fasthttp.RequestCtx) {
	if a.metrics == nil {
		utils.CreateNotFoundResponse(ctx, "metrics disabled")
		return
	}

	data, err := a.metrics.GetMetrics()
	if err != nil {
		a.logger.Error("Failed to gather metrics", zap.Error(err))
		utils.CreateErrorResponse(ctx, "failed to gather metrics")
		return
	}

	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

func (a *API) writeLibraryError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case types.IsError(err, types.ErrLibraryPathInvalid):
		utils.CreateNotFoundResponse(ctx, "path not found")
	case types.IsError(err, types.ErrLibraryNotFolder),
		types.IsError(err, types.ErrLibraryNotImage),
		types.IsError(err, types.ErrLibraryDecodeFailed):
		utils.CreateBadRequestResponse(ctx, err.Error())
	default:
		a.logger.Error("Library operation failed", zap.Error(err))
		utils.CreateErrorResponse(ctx, "library operation failed")
	}
}

func (a *API) writeSessionError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case types.IsError(err, types.ErrSessionNotFound):
		utils.CreateNotFoundResponse(ctx, "session not found")
	case types.IsError(err, types.ErrSessionIDEmpty):
		utils.CreateBadRequestResponse(ctx, "missing session id")
	default:
		a.logger.Error("Session operation failed", zap.Error(err))
		utils.CreateErrorResponse(ctx, "session operation failed")
	}
}
