package memstore

import (
	"context"
	"testing"

	"portfolio/internal/repository"
	"portfolio/internal/repository/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.KVStore { return New() })
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Put(ctx, "stocks/a", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put err=%v", err)
	}
	got, _ := s.Get(ctx, "stocks/a")
	got[0] = 'x'
	again, _ := s.Get(ctx, "stocks/a")
	if string(again) != `{"a":1}` {
		t.Fatalf("stored=%s want unchanged", again)
	}
}
