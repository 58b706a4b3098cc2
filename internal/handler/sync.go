package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio/internal/markethours"
	"portfolio/internal/models"
	"portfolio/internal/repository"
	"portfolio/internal/scheduler"
)

const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// PassRunner is the part of the scheduler exposed to operators.
type PassRunner interface {
	State() scheduler.State
	RunPass(ctx context.Context) scheduler.PassResult
}

type SyncHandler struct {
	Cache     *repository.CacheRepository
	Scheduler PassRunner
	Window    markethours.Window
	Logger    *zap.Logger
	Now       func() time.Time
}

type syncStatus struct {
	MarketOpen bool                         `json:"market_open"`
	Markers    map[string]models.SyncMarker `json:"markers"`
	Scheduler  *scheduler.State             `json:"scheduler,omitempty"`
}

func (h *SyncHandler) Register(r *gin.Engine) {
	r.GET("/api/sync", h.status)
	r.POST("/api/sync/run", h.run)
	r.GET("/api/logs", h.logs)
}

// @Summary Sync status
// @Description Latest marker per stage, whether the market window is open now, and the scheduler state.
// @Tags sync
// @Produce json
// @Success 200 {object} apiResponse{data=syncStatus}
// @Router /api/sync [get]
func (h *SyncHandler) status(c *gin.Context) {
	if h.Cache == nil {
		Error(c, http.StatusInternalServerError, "cache unavailable", nil)
		return
	}
	markers, err := h.Cache.SyncMarkers(c.Request.Context())
	if err != nil {
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	out := syncStatus{
		MarketOpen: h.Window.IsOpen(h.now()),
		Markers:    markers,
	}
	if h.Scheduler != nil {
		st := h.Scheduler.State()
		out.Scheduler = &st
	}
	Ok(c, out, nil)
}

// @Summary Run one sync pass
// @Description Scrapes fundamentals then merges. Returns 409 when a merge is already running.
// @Tags sync
// @Produce json
// @Success 200 {object} apiResponse{data=scheduler.PassResult}
// @Failure 409 {object} apiResponse
// @Router /api/sync/run [post]
func (h *SyncHandler) run(c *gin.Context) {
	if h.Scheduler == nil {
		Error(c, http.StatusInternalServerError, "scheduler unavailable", nil)
		return
	}
	res := h.Scheduler.RunPass(c.Request.Context())
	if res.MergeBusy {
		Error(c, http.StatusConflict, "merge already in progress", map[string]any{"run_id": res.RunID})
		return
	}
	if err := res.Err(); err != nil {
		h.logger().Warn("manual sync pass finished with errors", zap.String("run_id", res.RunID), zap.Error(err))
	}
	Ok(c, res, nil)
}

// @Summary Sync log tail
// @Tags sync
// @Produce json
// @Param limit query int false "lines to return (default 100, max 1000)"
// @Success 200 {object} apiResponse{data=[]string}
// @Router /api/logs [get]
func (h *SyncHandler) logs(c *gin.Context) {
	if h.Cache == nil {
		Error(c, http.StatusInternalServerError, "cache unavailable", nil)
		return
	}
	limit := repository.NormalizeLimit(intQuery(c, "limit", defaultLogLimit), defaultLogLimit, maxLogLimit)
	lines, err := h.Cache.TailSyncLog(c.Request.Context(), limit)
	if err != nil {
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	OkList(c, lines, 0, map[string]any{"limit": limit})
}

func (h *SyncHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *SyncHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
