package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetSetEx(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok := s.Get(ctx, "missing")
	assert.False(t, ok)

	s.SetEx(ctx, "k", time.Minute, []byte("v"))
	v, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	s.SetEx(ctx, "k", time.Millisecond, []byte("v"))
	time.Sleep(5 * time.Millisecond)

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStoreMGetAlignment(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.SetEx(ctx, "a", time.Minute, []byte("1"))
	s.SetEx(ctx, "c", time.Minute, []byte("3"))

	out := s.MGet(ctx, []string{"a", "b", "c"})
	require.Len(t, out, 3)
	assert.Equal(t, []byte("1"), out[0])
	assert.Nil(t, out[1])
	assert.Equal(t, []byte("3"), out[2])
}

func TestMemoryStorePipeline(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	err := s.Pipeline().
		SetEx("k1", time.Minute, []byte("1")).
		SetEx("k2", time.Minute, []byte("2")).
		Execute(ctx)
	require.NoError(t, err)

	v1, _ := s.Get(ctx, "k1")
	v2, _ := s.Get(ctx, "k2")
	assert.Equal(t, []byte("1"), v1)
	assert.Equal(t, []byte("2"), v2)
}

func TestMemoryStoreLeaseMutualExclusion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	h1, ok1 := s.Lease(ctx, "lock", time.Minute)
	require.True(t, ok1)

	_, ok2 := s.Lease(ctx, "lock", time.Minute)
	assert.False(t, ok2, "second lease attempt must fail while the first is held")

	h1.Release(ctx)

	_, ok3 := s.Lease(ctx, "lock", time.Minute)
	assert.True(t, ok3, "lease must be acquirable again after release")
}

func TestMemoryStoreLeaseExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok := s.Lease(ctx, "lock", time.Millisecond)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	_, ok = s.Lease(ctx, "lock", time.Minute)
	assert.True(t, ok, "an expired lease must be re-acquirable")
}

func TestMemoryStoreDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.SetEx(ctx, "tile:6:1:1", time.Minute, []byte("a"))
	s.SetEx(ctx, "tile:6:1:2", time.Minute, []byte("b"))
	s.SetEx(ctx, "viewport:abc", time.Minute, []byte("c"))

	require.NoError(t, s.DeleteByPattern(ctx, "tile:*"))

	_, ok := s.Get(ctx, "tile:6:1:1")
	assert.False(t, ok)
	_, ok = s.Get(ctx, "viewport:abc")
	assert.True(t, ok)
}

func TestNewSelectsMemoryStoreWhenURLEmpty(t *testing.T) {
	store := New("")
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)
}

func TestNewFallsBackToMemoryOnUnreachableRedis(t *testing.T) {
	store := New("redis://127.0.0.1:1/0")
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)
}
