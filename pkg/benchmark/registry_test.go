package benchmark

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icvsb/icvsb/pkg/models"
)

func registryClient(t *testing.T, id int64) *Client {
	t.Helper()
	client := testClient(t, models.SeverityNone, DefaultConfig())
	client.id = id
	client.scheduler = NewScheduler(client, "0 0 * * 0", testLogger())
	return client
}

func TestRegistryMintsMonotonicIDs(t *testing.T) {
	registry := NewRegistry(testLogger())
	defer registry.Shutdown()

	first := registry.Register(func(id int64) *Client { return registryClient(t, id) })
	second := registry.Register(func(id int64) *Client { return registryClient(t, id) })

	assert.Equal(t, int64(1), first.ID())
	assert.Equal(t, int64(2), second.ID())

	got, err := registry.Get(1)
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestRegistryUnknownClient(t *testing.T) {
	registry := NewRegistry(testLogger())
	defer registry.Shutdown()

	_, err := registry.Get(404)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestRegistryListSortedByID(t *testing.T) {
	registry := NewRegistry(testLogger())
	defer registry.Shutdown()

	for i := 0; i < 3; i++ {
		registry.Register(func(id int64) *Client { return registryClient(t, id) })
	}

	clients := registry.List()
	require.Len(t, clients, 3)
	for i, client := range clients {
		assert.Equal(t, int64(i+1), client.ID())
	}
}

func TestRegistryRemoveStopsScheduler(t *testing.T) {
	registry := NewRegistry(testLogger())
	defer registry.Shutdown()

	client := registry.Register(func(id int64) *Client { return registryClient(t, id) })
	require.True(t, client.Scheduler().IsRunning())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, registry.Remove(ctx, client.ID()))
	assert.False(t, client.Scheduler().IsRunning())

	_, err := registry.Get(client.ID())
	assert.Error(t, err)

	assert.Error(t, registry.Remove(ctx, client.ID()))
}
