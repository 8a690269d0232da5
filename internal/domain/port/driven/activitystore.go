package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// ActivityStore defines the driven port for background job run state.
type ActivityStore interface {
	// Get returns the activity and whether it exists.
	Get(ctx context.Context, name string) (model.Activity, bool, error)
	List(ctx context.Context) ([]model.Activity, error)

	// TryStart atomically checks and marks an activity as running. Unless
	// force is set it declines when the activity is already running or
	// finished within interval of now. A new activity starts with a zero
	// refresh time.
	TryStart(ctx context.Context, name string, interval time.Duration, force bool, now time.Time) (bool, error)

	// Finish marks the activity as not running, advances the refresh time to
	// now (never backwards) and records runErr's message.
	Finish(ctx context.Context, name string, now time.Time, runErr error) error

	// ResetRunning clears running flags left behind by a previous process.
	ResetRunning(ctx context.Context) error
}
