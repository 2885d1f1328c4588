package cache

import (
	"context"
	"testing"
	"time"

	"github.com/eko/gocache/lib/v4/store"
	"github.com/jon4hz/vaxboard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache[T any](prefix string, options ...store.Option) *PrefixedCache[T] {
	backend := New(&config.CacheConfig{Type: config.CacheTypeMemory})
	return NewPrefixedCache[T](backend, config.CacheTypeMemory, prefix, options...)
}

func TestPrefixedCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache[sample]("test-")

	require.NoError(t, c.Set(ctx, "a", sample{Name: "alpha", Count: 3}))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, sample{Name: "alpha", Count: 3}, got)
	assert.Equal(t, config.CacheTypeMemory, c.GetType())
}

func TestPrefixedCache_Miss(t *testing.T) {
	c := newTestCache[sample]("test-")

	_, err := c.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestPrefixedCache_PrefixesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	backend := New(&config.CacheConfig{Type: config.CacheTypeMemory})
	first := NewPrefixedCache[string](backend, config.CacheTypeMemory, "first-")
	second := NewPrefixedCache[string](backend, config.CacheTypeMemory, "second-")

	require.NoError(t, first.Set(ctx, "key", "one"))
	require.NoError(t, second.Set(ctx, "key", "two"))

	got, err := first.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	got, err = second.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "two", got)
}

func TestPrefixedCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache[int]("test-")

	require.NoError(t, c.Set(ctx, 1, 42))
	require.NoError(t, c.Delete(ctx, 1))

	_, err := c.Get(ctx, 1)
	assert.True(t, IsNotFound(err))

	// deleting a missing key is not an error
	assert.NoError(t, c.Delete(ctx, 1))
}

func TestPrefixedCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := newTestCache[int]("test-", store.WithExpiration(50*time.Millisecond))

	require.NoError(t, c.Set(ctx, "k", 1))
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := c.Get(ctx, "k")
		return IsNotFound(err)
	}, time.Second, 20*time.Millisecond)
}

func TestIsNotFound(t *testing.T) {
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(assert.AnError))
	assert.True(t, IsNotFound(store.NotFoundWithCause(assert.AnError)))
}
