package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// ViewerSync refreshes the cached viewer profile of every connection.
type ViewerSync struct {
	provider    driven.PullProvider
	connections driven.ConnectionStore
}

// NewViewerSync creates a ViewerSync with all required dependencies.
func NewViewerSync(provider driven.PullProvider, connections driven.ConnectionStore) *ViewerSync {
	return &ViewerSync{
		provider:    provider,
		connections: connections,
	}
}

// Run fetches and stores the viewer of each connection. A failing connection
// does not stop the others; all failures are returned joined.
func (j *ViewerSync) Run(ctx context.Context) error {
	connections, err := j.connections.List(ctx)
	if err != nil {
		return fmt.Errorf("list connections: %w", err)
	}

	var errs []error
	for _, conn := range connections {
		if err := ctx.Err(); err != nil {
			return err
		}

		profile, err := j.provider.GetViewer(ctx, conn)
		if err != nil {
			slog.Error("viewer fetch failed", "connection", conn.ID, "error", err)
			errs = append(errs, fmt.Errorf("fetch viewer for connection %s: %w", conn.ID, err))
			continue
		}

		if err := j.connections.UpdateViewer(ctx, conn.ID, profile); err != nil {
			errs = append(errs, fmt.Errorf("store viewer for connection %s: %w", conn.ID, err))
			continue
		}

		slog.Debug("viewer refreshed",
			"connection", conn.ID,
			"login", profile.User.Login,
			"teams", len(profile.Teams),
		)
	}

	slog.Info("viewer sync complete", "connections", len(connections), "errors", len(errs))

	return errors.Join(errs...)
}
