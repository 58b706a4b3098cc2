package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"portfolio/internal/models"
	"portfolio/internal/repository"
)

// recordSync stores the stage marker and appends a sync log line. Both are
// informational, so failures are logged and swallowed.
func recordSync(ctx context.Context, cache *repository.CacheRepository, logger *zap.Logger, marker models.SyncMarker) {
	if cache == nil {
		return
	}
	if err := cache.SaveSyncMarker(ctx, marker); err != nil {
		logger.Warn("sync marker write failed", zap.String("source", marker.Source), zap.Error(err))
	}
	if err := cache.AppendSyncLog(ctx, marker.String()); err != nil {
		logger.Warn("sync log append failed", zap.String("source", marker.Source), zap.Error(err))
	}
}

func failedMarker(source string, at time.Time, err error) models.SyncMarker {
	msg := err.Error()
	return models.SyncMarker{Source: source, At: at, OK: false, Error: &msg}
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func clockOrNow(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
