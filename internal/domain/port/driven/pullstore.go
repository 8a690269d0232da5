package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// ErrPullNotFound indicates the requested pull is not in the cache.
var ErrPullNotFound = errors.New("pull not found")

// PullFilter narrows PullStore.List. Zero fields do not filter.
type PullFilter struct {
	SectionID string
	Host      string
	Repo      string
	Starred   bool
	Attention bool // Only pulls whose attention result is set.
}

// PullStore defines the driven port for the local pull cache.
type PullStore interface {
	// List returns cached pulls ordered by updated time, newest first.
	List(ctx context.Context, filter PullFilter) ([]model.Pull, error)
	// Get returns ErrPullNotFound if the uid is not cached.
	Get(ctx context.Context, uid string) (model.Pull, error)
	// ListUIDs returns every cached uid.
	ListUIDs(ctx context.Context) ([]string, error)
	// Reconcile deletes the stale uids and upserts the fresh pulls, including
	// their section membership, in a single transaction. Each stored pull's
	// starred flag comes from the star store at commit time, not the input.
	Reconcile(ctx context.Context, stale []string, fresh []model.Pull) error
}
