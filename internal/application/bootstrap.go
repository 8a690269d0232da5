package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// SeedDefaultSections stores the default sections when the store has none.
// It returns the number of sections written.
func SeedDefaultSections(ctx context.Context, store driven.SectionStore) (int, error) {
	existing, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sections: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	defaults := model.DefaultSections()
	for _, s := range defaults {
		if err := store.Put(ctx, s); err != nil {
			return 0, fmt.Errorf("seed section %s: %w", s.ID, err)
		}
	}

	slog.Info("seeded default sections", "count", len(defaults))
	return len(defaults), nil
}

// EnsureConnection stores conn when no connection exists yet, so a token
// from the environment works on first start without touching the API.
// Stored connections always take precedence.
func EnsureConnection(ctx context.Context, store driven.ConnectionStore, conn model.Connection) (bool, error) {
	existing, err := store.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list connections: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	if err := store.Put(ctx, conn); err != nil {
		return false, fmt.Errorf("create connection %s: %w", conn.ID, err)
	}

	slog.Info("created connection from environment", "id", conn.ID, "host", conn.ResolvedHost())
	return true, nil
}
