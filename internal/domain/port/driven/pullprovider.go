// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// PullProvider defines the driven port for reading pull requests from a
// GitHub connection. Implementations retry rate-limited calls themselves;
// an error returned here is final for the current sync cycle.
type PullProvider interface {
	// GetViewer returns the authenticated user and their team memberships.
	GetViewer(ctx context.Context, conn model.Connection) (model.Profile, error)

	// SearchPulls runs a prepared search query and returns the first page of
	// matching pulls with reviews, discussions and CI state filled in.
	SearchPulls(ctx context.Context, conn model.Connection, query string) ([]model.Pull, error)
}

// ClientCache is implemented by providers that keep per-connection clients.
// Invalidate must be called after a connection's URL or token changes.
type ClientCache interface {
	Invalidate(connectionID string)
}
