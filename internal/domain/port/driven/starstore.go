package driven

import "context"

// StarStore defines the driven port for user-set star flags. Stars are keyed
// by pull uid and outlive sync cycles.
type StarStore interface {
	// ListStarred returns the set of starred pull uids.
	ListStarred(ctx context.Context) (map[string]bool, error)
	// SetStarred records or clears a star, updating the cached pull in the
	// same transaction.
	SetStarred(ctx context.Context, uid string, starred bool) error
}
