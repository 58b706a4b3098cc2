package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portfolio/internal/models"
	"portfolio/internal/repository"
)

// Store backs the cache with the cache_entries and sync_log_entries tables.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("gorm store not configured")
	}
	var item models.CacheEntry
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(item.Value), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if s == nil || s.db == nil {
		return errors.New("gorm store not configured")
	}
	if err := repository.ValidateKey(key); err != nil {
		return err
	}
	item := models.CacheEntry{
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&item).Error
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("gorm store not configured")
	}
	query := s.db.WithContext(ctx).Model(&models.CacheEntry{})
	if prefix != "" {
		query = query.Where("key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")
	}
	var keys []string
	if err := query.Order("key ASC").Pluck("key", &keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) AppendLog(ctx context.Context, stream, line string) error {
	if s == nil || s.db == nil {
		return errors.New("gorm store not configured")
	}
	return s.db.WithContext(ctx).Create(&models.SyncLogEntry{Stream: stream, Line: line}).Error
}

func (s *Store) ReadLog(ctx context.Context, stream string, limit int) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("gorm store not configured")
	}
	query := s.db.WithContext(ctx).Model(&models.SyncLogEntry{}).
		Where("stream = ?", stream).
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var items []models.SyncLogEntry
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		out = append(out, items[i].Line)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("gorm store not configured")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
