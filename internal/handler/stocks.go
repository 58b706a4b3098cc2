package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"portfolio/internal/models"
	"portfolio/internal/repository"
)

const defaultStreamInterval = 20 * time.Second

// StocksHandler serves merged records from the cache. Unreadable entries are
// skipped and logged rather than failing the whole response.
type StocksHandler struct {
	Cache          *repository.CacheRepository
	StreamInterval time.Duration
	// OriginPatterns are passed to the websocket handshake. "*" disables the
	// origin check.
	OriginPatterns []string
	// Shutdown ends open streams when closed, so they do not hold up a
	// graceful server shutdown.
	Shutdown       <-chan struct{}
	Logger         *zap.Logger
	Now            func() time.Time
}

type stocksFrame struct {
	Stocks  []models.StockRecord `json:"stocks"`
	Expired int                  `json:"expired"`
	Skipped int                  `json:"skipped"`
	At      time.Time            `json:"at"`
}

func (h *StocksHandler) Register(r *gin.Engine) {
	g := r.Group("/api/stocks")
	g.GET("", h.list)
	g.GET("/stream", h.stream)
	g.GET("/ws", h.ws)
	g.GET("/:id", h.get)
}

// @Summary List merged stocks
// @Description Every merged record ordered by id. Unreadable entries are skipped and counted in meta.skipped.
// @Tags stocks
// @Produce json
// @Success 200 {object} apiResponse{data=[]models.StockRecord}
// @Failure 503 {object} apiResponse
// @Router /api/stocks [get]
func (h *StocksHandler) list(c *gin.Context) {
	if h.Cache == nil {
		Error(c, http.StatusInternalServerError, "cache unavailable", nil)
		return
	}
	frame, err := h.snapshot(c.Request.Context())
	if err != nil {
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	OkList(c, frame.Stocks, frame.Skipped, map[string]any{
		"expired": frame.Expired,
		"at":      frame.At,
	})
}

// @Summary Get one merged stock
// @Tags stocks
// @Produce json
// @Param id path string true "stock id"
// @Success 200 {object} apiResponse{data=models.StockRecord}
// @Failure 404 {object} apiResponse
// @Router /api/stocks/{id} [get]
func (h *StocksHandler) get(c *gin.Context) {
	if h.Cache == nil {
		Error(c, http.StatusInternalServerError, "cache unavailable", nil)
		return
	}
	rec, err := h.Cache.GetStock(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		Error(c, http.StatusNotFound, "stock not found", nil)
		return
	case errors.Is(err, repository.ErrInvalidKey):
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	case err != nil:
		Error(c, http.StatusServiceUnavailable, err.Error(), nil)
		return
	}
	Ok(c, rec, map[string]any{"expired": rec.Expired(h.now())})
}

// @Summary Stream merged stocks
// @Description Server-sent "stocks" events, one on connect and then one per stream interval.
// @Tags stocks
// @Produce text/event-stream
// @Success 200 {object} stocksFrame
// @Router /api/stocks/stream [get]
func (h *StocksHandler) stream(c *gin.Context) {
	if h.Cache == nil {
		Error(c, http.StatusInternalServerError, "cache unavailable", nil)
		return
	}
	ctx := c.Request.Context()
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.interval())
	defer ticker.Stop()
	for {
		frame, err := h.snapshot(ctx)
		if err != nil {
			c.SSEvent("error", gin.H{"message": err.Error()})
		} else {
			c.SSEvent("stocks", frame)
		}
		c.Writer.Flush()

		select {
		case <-ctx.Done():
			return
		case <-h.Shutdown:
			return
		case <-ticker.C:
		}
	}
}

// @Summary Merged stocks over websocket
// @Description Pushes the same frames as the event stream. Client messages are ignored.
// @Tags stocks
// @Success 101 {object} stocksFrame
// @Router /api/stocks/ws [get]
func (h *StocksHandler) ws(c *gin.Context) {
	if h.Cache == nil {
		Error(c, http.StatusInternalServerError, "cache unavailable", nil)
		return
	}
	opts := &websocket.AcceptOptions{OriginPatterns: h.OriginPatterns}
	for _, p := range h.OriginPatterns {
		if p == "*" {
			opts.InsecureSkipVerify = true
		}
	}
	conn, err := websocket.Accept(c.Writer, c.Request, opts)
	if err != nil {
		h.logger().Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	// Readers only listen; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(c.Request.Context())
	ticker := time.NewTicker(h.interval())
	defer ticker.Stop()
	for {
		frame, err := h.snapshot(ctx)
		if err != nil {
			h.logger().Warn("stock snapshot failed", zap.Error(err))
			conn.Close(websocket.StatusTryAgainLater, "cache unavailable")
			return
		}
		writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = wsjson.Write(writeCtx, conn, frame)
		cancel()
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-h.Shutdown:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ticker.C:
		}
	}
}

func (h *StocksHandler) snapshot(ctx context.Context) (stocksFrame, error) {
	records, skipped, err := h.Cache.ListStocks(ctx)
	if err != nil {
		return stocksFrame{}, err
	}
	if len(skipped) > 0 {
		h.logger().Warn("unreadable stock entries skipped", zap.Strings("keys", skipped))
	}
	if records == nil {
		records = []models.StockRecord{}
	}
	now := h.now()
	expired := 0
	for _, rec := range records {
		if rec.Expired(now) {
			expired++
		}
	}
	return stocksFrame{Stocks: records, Expired: expired, Skipped: len(skipped), At: now}, nil
}

func (h *StocksHandler) interval() time.Duration {
	if h.StreamInterval > 0 {
		return h.StreamInterval
	}
	return defaultStreamInterval
}

func (h *StocksHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *StocksHandler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
