package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// ActivityFunc is the body of a scheduled activity.
type ActivityFunc func(ctx context.Context) error

// Scheduler runs named activities at most once per interval, never two runs
// of the same name at a time. Run state is persisted in an ActivityStore so
// freshness survives restarts.
type Scheduler struct {
	store driven.ActivityStore
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewScheduler creates a Scheduler backed by the given store.
func NewScheduler(store driven.ActivityStore) *Scheduler {
	return &Scheduler{
		store: store,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// RunActivity runs fn unless the activity is already running or completed
// within interval. force bypasses the freshness check; a forced run waits
// for an in-flight run of the same name instead of preempting it.
//
// The activity is marked finished with an advanced refresh time whether fn
// succeeds, fails or panics, so a failing job waits out its interval instead
// of retrying immediately. fn's error is returned to the caller.
func (s *Scheduler) RunActivity(ctx context.Context, name string, interval time.Duration, force bool, fn ActivityFunc) (ran bool, err error) {
	l := s.lockFor(name)
	if force {
		l.Lock()
	} else if !l.TryLock() {
		slog.Debug("activity already running", "activity", name)
		return false, nil
	}
	defer l.Unlock()

	started, err := s.store.TryStart(ctx, name, interval, force, s.now())
	if err != nil {
		return false, fmt.Errorf("start activity %s: %w", name, err)
	}
	if !started {
		slog.Debug("activity is fresh, skipping", "activity", name)
		return false, nil
	}

	defer func() {
		p := recover()
		runErr := err
		if p != nil {
			runErr = fmt.Errorf("activity %s panicked: %v", name, p)
		}

		// Record completion even when the caller's context is gone.
		if ferr := s.store.Finish(context.WithoutCancel(ctx), name, s.now(), runErr); ferr != nil {
			err = errors.Join(err, fmt.Errorf("finish activity %s: %w", name, ferr))
		}

		if p != nil {
			panic(p)
		}
	}()

	return true, fn(ctx)
}

// Schedule runs the activity immediately and then again interval after each
// completion, so slow runs push the next one back. A failed run is logged and
// the schedule continues. Schedule blocks until ctx is canceled.
func (s *Scheduler) Schedule(ctx context.Context, name string, interval time.Duration, fn ActivityFunc) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("schedule stopped", "activity", name)
			return
		case <-timer.C:
		}

		start := time.Now()
		ran, err := s.RunActivity(ctx, name, interval, false, fn)
		switch {
		case err != nil && ctx.Err() == nil:
			slog.Error("scheduled activity failed", "activity", name, "error", err)
		case ran:
			slog.Debug("scheduled activity complete",
				"activity", name,
				"duration", time.Since(start).Round(time.Millisecond),
			)
		}

		delay := interval
		if !ran && err == nil {
			delay = s.untilStale(ctx, name, interval)
		}
		timer.Reset(delay)
	}
}

// untilStale returns how long the activity stays fresh, so a skipped run is
// retried as soon as its interval elapses rather than a full interval later.
func (s *Scheduler) untilStale(ctx context.Context, name string, interval time.Duration) time.Duration {
	activity, ok, err := s.store.Get(ctx, name)
	if err != nil || !ok || activity.Running {
		return interval
	}

	remaining := activity.RefreshTime.Add(interval).Sub(s.now())
	if remaining < time.Second {
		return time.Second
	}
	if remaining > interval {
		return interval
	}
	return remaining
}

// ResetStale clears running flags left by a process that exited mid-run.
// Call once before starting schedules.
func (s *Scheduler) ResetStale(ctx context.Context) error {
	if err := s.store.ResetRunning(ctx); err != nil {
		return fmt.Errorf("reset running activities: %w", err)
	}
	return nil
}
