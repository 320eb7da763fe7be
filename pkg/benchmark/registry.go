package benchmark

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
)

// Registry is the process-wide mapping from client id to client. It
// holds the only strong reference to each client; removal is the sole
// termination path. IDs are monotonic positive integers minted here.
type Registry struct {
	logger ectologger.Logger

	mu      sync.RWMutex
	clients map[int64]*Client
	nextID  int64

	// stop is shared by every client's scheduler goroutine.
	stop     chan struct{}
	stopOnce sync.Once
}

func NewRegistry(logger ectologger.Logger) *Registry {
	return &Registry{
		logger:  logger,
		clients: make(map[int64]*Client),
		stop:    make(chan struct{}),
	}
}

// Register mints the next id, builds the client through the callback
// and starts its scheduler. The build runs under the registry lock so
// the id cannot be observed before the client is reachable.
func (r *Registry) Register(build func(id int64) *Client) *Client {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	client := build(id)
	r.clients[id] = client
	r.mu.Unlock()

	if err := client.Scheduler().Start(r.stop); err != nil {
		r.logger.WithError(err).WithField("benchmarkClientId", id).Warn("failed to start scheduler")
	}

	r.logger.WithFields(map[string]any{
		"benchmarkClientId": id,
		"service":           client.Service().Name,
	}).Info("registered benchmark client")

	return client
}

// Get returns the client with the given id.
func (r *Registry) Get(id int64) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[id]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown benchmark client %d", id)
	}
	return client, nil
}

// List returns every registered client ordered by id.
func (r *Registry) List() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID() < clients[j].ID() })
	return clients
}

// Remove drops a client from the registry and stops its scheduler.
func (r *Registry) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	client, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	r.mu.Unlock()

	if !ok {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown benchmark client %d", id)
	}
	return client.Scheduler().Stop(ctx)
}

// Shutdown closes the shared stop signal, stopping every scheduler.
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}
