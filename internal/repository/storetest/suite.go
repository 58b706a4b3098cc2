// Package storetest holds the behavioural checks every KVStore backend must
// pass. Backend test files call Run with a constructor for a fresh store.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/repository"
)

func Run(t *testing.T, newStore func(t *testing.T) repository.KVStore) {
	t.Helper()

	t.Run("get missing key", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "stocks/missing")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("put overwrites", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "snapshots/quotes", []byte(`{"v":1}`)))
		require.NoError(t, s.Put(ctx, "snapshots/quotes", []byte(`{"v":2}`)))
		got, err := s.Get(ctx, "snapshots/quotes")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(got))
	})

	t.Run("list by prefix", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, k := range []string{"stocks/b", "stocks/a", "sync/merge", "snapshots/quotes"} {
			require.NoError(t, s.Put(ctx, k, []byte(`{}`)))
		}
		keys, err := s.List(ctx, "stocks/")
		require.NoError(t, err)
		assert.Equal(t, []string{"stocks/a", "stocks/b"}, keys)

		none, err := s.List(ctx, "nothing/")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("rejects unsafe keys", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"", "../escape", "/abs", "a//b"} {
			err := s.Put(context.Background(), k, []byte(`{}`))
			assert.ErrorIs(t, err, repository.ErrInvalidKey, "key %q", k)
		}
	})

	t.Run("log tail", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i := 1; i <= 5; i++ {
			require.NoError(t, s.AppendLog(ctx, "sync", fmt.Sprintf("line %d", i)))
		}
		lines, err := s.ReadLog(ctx, "sync", 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"line 3", "line 4", "line 5"}, lines)

		all, err := s.ReadLog(ctx, "sync", 0)
		require.NoError(t, err)
		assert.Len(t, all, 5)

		empty, err := s.ReadLog(ctx, "other", 10)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("stocks/s%d", i)
				assert.NoError(t, s.Put(ctx, key, []byte(fmt.Sprintf(`{"n":%d}`, i))))
				assert.NoError(t, s.AppendLog(ctx, "sync", key))
			}(i)
		}
		wg.Wait()
		keys, err := s.List(ctx, "stocks/")
		require.NoError(t, err)
		assert.Len(t, keys, 8)
		lines, err := s.ReadLog(ctx, "sync", 0)
		require.NoError(t, err)
		assert.Len(t, lines, 8)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(context.Background()))
	})
}
