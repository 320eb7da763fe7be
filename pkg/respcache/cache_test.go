package respcache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icvsb/icvsb/pkg/respcache"
)

func TestMemoryGetPut(t *testing.T) {
	ctx := context.Background()
	cache := respcache.NewMemory(4)

	key := respcache.Key{ClientID: 1, KeyID: 2, URI: "https://img.example/u1.jpg"}

	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	cache.Put(ctx, key, []byte(`{"labels":{"cat":0.9}}`))
	body, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, `{"labels":{"cat":0.9}}`, string(body))

	// same uri under a different key is a different entry
	other := respcache.Key{ClientID: 1, KeyID: 3, URI: key.URI}
	_, ok = cache.Get(ctx, other)
	assert.False(t, ok)
}

func TestMemoryOverwrite(t *testing.T) {
	ctx := context.Background()
	cache := respcache.NewMemory(4)
	key := respcache.Key{ClientID: 1, KeyID: 1, URI: "https://img.example/u1.jpg"}

	cache.Put(ctx, key, []byte("old"))
	cache.Put(ctx, key, []byte("new"))

	body, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "new", string(body))
	assert.Equal(t, 1, cache.Len())
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	cache := respcache.NewMemory(2)

	a := respcache.Key{ClientID: 1, KeyID: 1, URI: "a"}
	b := respcache.Key{ClientID: 1, KeyID: 1, URI: "b"}
	c := respcache.Key{ClientID: 1, KeyID: 1, URI: "c"}

	cache.Put(ctx, a, []byte("a"))
	cache.Put(ctx, b, []byte("b"))

	// touch a so b becomes the eviction candidate
	_, ok := cache.Get(ctx, a)
	require.True(t, ok)

	cache.Put(ctx, c, []byte("c"))
	assert.Equal(t, 2, cache.Len())

	_, ok = cache.Get(ctx, b)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, a)
	assert.True(t, ok)
	_, ok = cache.Get(ctx, c)
	assert.True(t, ok)
}
