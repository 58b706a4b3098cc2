package redisstore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"portfolio/internal/repository"
)

const scanCount = 200

// Store keeps documents as plain string keys and log streams as capped lists,
// all under a shared namespace.
type Store struct {
	Client    redis.UniversalClient
	Namespace string
	// MaxLogLines caps each log stream; zero keeps everything.
	MaxLogLines int64
}

func New(opt *redis.Options, namespace string) *Store {
	return &Store{Client: redis.NewClient(opt), Namespace: namespace, MaxLogLines: 5000}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := repository.ValidateKey(key); err != nil {
		return nil, err
	}
	b, err := s.Client.Get(ctx, s.docKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := repository.ValidateKey(key); err != nil {
		return err
	}
	return s.Client.Set(ctx, s.docKey(key), value, 0).Err()
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	base := s.docKey("")
	match := escapeGlob(base+prefix) + "*"
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.Client.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, base))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(keys)
	return dedupe(keys), nil
}

func (s *Store) AppendLog(ctx context.Context, stream, line string) error {
	if err := repository.ValidateKey(stream); err != nil {
		return err
	}
	key := s.logKey(stream)
	pipe := s.Client.TxPipeline()
	pipe.RPush(ctx, key, line)
	if s.MaxLogLines > 0 {
		pipe.LTrim(ctx, key, -s.MaxLogLines, -1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) ReadLog(ctx context.Context, stream string, limit int) ([]string, error) {
	if err := repository.ValidateKey(stream); err != nil {
		return nil, err
	}
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	return s.Client.LRange(ctx, s.logKey(stream), start, -1).Result()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.Client.Close()
}

func (s *Store) docKey(key string) string {
	return s.namespace() + "doc:" + key
}

func (s *Store) logKey(stream string) string {
	return s.namespace() + "log:" + stream
}

func (s *Store) namespace() string {
	ns := strings.TrimSpace(s.Namespace)
	if ns == "" {
		return ""
	}
	return ns + ":"
}

// SCAN may return a key more than once.
func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, k := range sorted {
		if i > 0 && k == sorted[i-1] {
			continue
		}
		out = append(out, k)
	}
	return out
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
