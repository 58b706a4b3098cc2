package models

import (
	"time"

	"gorm.io/datatypes"
)

type CacheEntry struct {
	Key       string         `gorm:"primaryKey;type:text;comment:cache key"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null;comment:cached document"`
	UpdatedAt time.Time      `gorm:"type:timestamptz;autoUpdateTime;comment:last write"`
}

func (CacheEntry) TableName() string {
	return "cache_entries"
}

type SyncLogEntry struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement;index:idx_sync_log_stream_id,priority:2"`
	Stream    string    `gorm:"type:text;not null;index:idx_sync_log_stream_id,priority:1"`
	Line      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (SyncLogEntry) TableName() string {
	return "sync_log_entries"
}
