package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Activity names used by the sync service.
const (
	ActivityPulls   = "pulls"
	ActivityViewers = "viewers"
)

// ErrAlreadyStarted is returned by Start when the service is running.
var ErrAlreadyStarted = errors.New("sync service already started")

// ErrNotStarted is returned by the Request methods before Start or after Stop.
var ErrNotStarted = errors.New("sync service not started")

// SyncService owns the two periodic sync jobs and exposes forced refreshes
// for the driving adapters.
type SyncService struct {
	scheduler      *Scheduler
	pullSync       *PullSync
	viewerSync     *ViewerSync
	pullInterval   time.Duration
	viewerInterval time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	queued map[string]bool // Forced runs requested but not yet started.
	wg     sync.WaitGroup
}

// NewSyncService creates a SyncService with all required dependencies.
func NewSyncService(
	scheduler *Scheduler,
	pullSync *PullSync,
	viewerSync *ViewerSync,
	pullInterval time.Duration,
	viewerInterval time.Duration,
) *SyncService {
	return &SyncService{
		scheduler:      scheduler,
		pullSync:       pullSync,
		viewerSync:     viewerSync,
		pullInterval:   pullInterval,
		viewerInterval: viewerInterval,
	}
}

// Start clears stale running flags and launches both schedules in the
// background. It returns immediately.
func (s *SyncService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	if err := s.scheduler.ResetStale(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.ctx = ctx
	s.cancel = cancel
	s.queued = make(map[string]bool)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.scheduler.Schedule(ctx, ActivityViewers, s.viewerInterval, s.viewerSync.Run)
	}()
	go func() {
		defer s.wg.Done()
		s.scheduler.Schedule(ctx, ActivityPulls, s.pullInterval, s.pullSync.Run)
	}()

	return nil
}

// Stop cancels both schedules and any requested forced runs, and waits for
// in-flight runs to return.
func (s *SyncService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.ctx = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

// RefreshPulls forces a pull sync and returns when it completes. An
// in-flight run is waited for, not interrupted.
func (s *SyncService) RefreshPulls(ctx context.Context) error {
	_, err := s.scheduler.RunActivity(ctx, ActivityPulls, s.pullInterval, true, s.pullSync.Run)
	return err
}

// RefreshViewers forces a viewer sync and returns when it completes.
func (s *SyncService) RefreshViewers(ctx context.Context) error {
	_, err := s.scheduler.RunActivity(ctx, ActivityViewers, s.viewerInterval, true, s.viewerSync.Run)
	return err
}

// RequestPulls schedules a forced pull sync in the background and returns
// immediately. Requests made while one is already waiting to start are
// merged into it.
func (s *SyncService) RequestPulls() error {
	return s.request(ActivityPulls, s.pullInterval, s.pullSync.Run)
}

// RequestViewers is RequestPulls for the viewer sync.
func (s *SyncService) RequestViewers() error {
	return s.request(ActivityViewers, s.viewerInterval, s.viewerSync.Run)
}

func (s *SyncService) request(name string, interval time.Duration, fn ActivityFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return ErrNotStarted
	}
	if s.queued[name] {
		slog.Debug("forced run already queued", "activity", name)
		return nil
	}
	s.queued[name] = true

	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		started := false
		_, err := s.scheduler.RunActivity(ctx, name, interval, true, func(ctx context.Context) error {
			s.dequeue(name)
			started = true
			return fn(ctx)
		})
		if !started {
			s.dequeue(name)
		}
		if err != nil && ctx.Err() == nil {
			slog.Error("forced run failed", "activity", name, "error", err)
		}
	}()

	return nil
}

func (s *SyncService) dequeue(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queued, name)
}
