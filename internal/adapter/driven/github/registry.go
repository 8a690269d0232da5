package github

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var (
	_ driven.PullProvider = (*Registry)(nil)
	_ driven.ClientCache  = (*Registry)(nil)
)

// DefaultMaxClients bounds the number of cached per-connection clients.
const DefaultMaxClients = 16

type registryEntry struct {
	client      *Client
	fingerprint string
}

// Registry hands out one Client per connection and keeps it alive across sync
// cycles so the HTTP cache and rate-limit state carry over. A client is
// rebuilt when its connection's base URL or token changes. When the registry
// is full the least recently used client is dropped.
type Registry struct {
	mu        sync.Mutex // Serializes lookup and rebuild of a connection's client.
	clients   *lru.Cache[string, *registryEntry]
	newClient func(model.Connection) (*Client, error)
}

// NewRegistry creates a registry holding at most maxClients clients.
// Non-positive values fall back to DefaultMaxClients.
func NewRegistry(maxClients int) *Registry {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	clients, err := lru.NewWithEvict(maxClients, func(id string, _ *registryEntry) {
		slog.Debug("github client dropped", "connection", id)
	})
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &Registry{
		clients:   clients,
		newClient: NewClient,
	}
}

// WithFactory replaces the client constructor. Tests use it to point clients
// at an httptest server.
func (r *Registry) WithFactory(factory func(model.Connection) (*Client, error)) *Registry {
	r.newClient = factory
	return r
}

// GetViewer returns the authenticated user of the connection.
func (r *Registry) GetViewer(ctx context.Context, conn model.Connection) (model.Profile, error) {
	c, err := r.client(conn)
	if err != nil {
		return model.Profile{}, err
	}
	return c.GetViewer(ctx)
}

// SearchPulls runs a search through the connection's client.
func (r *Registry) SearchPulls(ctx context.Context, conn model.Connection, query string) ([]model.Pull, error) {
	c, err := r.client(conn)
	if err != nil {
		return nil, err
	}
	return c.SearchPulls(ctx, query)
}

// Invalidate drops the cached client for the connection, if any.
func (r *Registry) Invalidate(connectionID string) {
	r.clients.Remove(connectionID)
}

// Len returns the number of cached clients.
func (r *Registry) Len() int {
	return r.clients.Len()
}

func (r *Registry) client(conn model.Connection) (*Client, error) {
	fp := fingerprint(conn)

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.clients.Get(conn.ID); ok && e.fingerprint == fp {
		return e.client, nil
	}

	c, err := r.newClient(conn)
	if err != nil {
		return nil, fmt.Errorf("create client for connection %s: %w", conn.ID, err)
	}
	r.clients.Add(conn.ID, &registryEntry{client: c, fingerprint: fp})

	return c, nil
}

// fingerprint identifies the settings a client was built from. The token is
// hashed so it is never held twice in plain form.
func fingerprint(conn model.Connection) string {
	sum := sha256.Sum256([]byte(conn.ResolvedBaseURL() + "\x00" + conn.Token))
	return hex.EncodeToString(sum[:])
}
