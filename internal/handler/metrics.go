package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type MetricsHandler struct {
	Handler http.Handler
}

func (h *MetricsHandler) Register(r *gin.Engine) {
	if h == nil || h.Handler == nil {
		return
	}
	r.GET("/metrics", gin.WrapH(h.Handler))
}
