package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

// OkList writes a list response. The list is never null, meta always carries
// count, and skipped reports stored entries that could not be decoded.
func OkList[T any](c *gin.Context, items []T, skipped int, meta map[string]any) {
	if items == nil {
		items = []T{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["count"] = len(items)
	meta["skipped"] = skipped
	Ok(c, items, meta)
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}
