package application_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// --- In-memory fakes for the driven ports ---

type fakeActivityStore struct {
	mu         sync.Mutex
	activities map[string]model.Activity
	startCalls int
}

func newFakeActivityStore() *fakeActivityStore {
	return &fakeActivityStore{activities: make(map[string]model.Activity)}
}

func (f *fakeActivityStore) Get(_ context.Context, name string) (model.Activity, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.activities[name]
	return a, ok, nil
}

func (f *fakeActivityStore) List(_ context.Context) ([]model.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Activity
	for _, a := range f.activities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeActivityStore) TryStart(_ context.Context, name string, interval time.Duration, force bool, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++

	a, ok := f.activities[name]
	if !ok {
		a = model.Activity{Name: name}
	}
	if !force && (a.Running || a.IsFresh(now, interval)) {
		return false, nil
	}
	a.Running = true
	f.activities[name] = a
	return true, nil
}

func (f *fakeActivityStore) Finish(_ context.Context, name string, now time.Time, runErr error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.activities[name]
	a.Name = name
	a.Running = false
	if now.After(a.RefreshTime) {
		a.RefreshTime = now
	}
	a.LastError = ""
	if runErr != nil {
		a.LastError = runErr.Error()
	}
	f.activities[name] = a
	return nil
}

func (f *fakeActivityStore) ResetRunning(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, a := range f.activities {
		a.Running = false
		f.activities[name] = a
	}
	return nil
}

type searchCall struct {
	ConnectionID string
	Query        string
}

type fakeProvider struct {
	mu          sync.Mutex
	results     map[string][]model.Pull // keyed by connection id + "|" + query
	viewers     map[string]model.Profile
	errs        map[string]error // keyed by connection id
	searches    []searchCall
	viewerCalls int
	gate        chan struct{} // When set, searches block until it is closed.
	entered     atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		results: make(map[string][]model.Pull),
		viewers: make(map[string]model.Profile),
		errs:    make(map[string]error),
	}
}

func (f *fakeProvider) on(connID, query string, pulls ...model.Pull) {
	f.results[connID+"|"+query] = pulls
}

func (f *fakeProvider) GetViewer(_ context.Context, conn model.Connection) (model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewerCalls++
	if err := f.errs[conn.ID]; err != nil {
		return model.Profile{}, err
	}
	return f.viewers[conn.ID], nil
}

func (f *fakeProvider) SearchPulls(_ context.Context, conn model.Connection, query string) ([]model.Pull, error) {
	f.entered.Add(1)
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, searchCall{ConnectionID: conn.ID, Query: query})
	if err := f.errs[conn.ID]; err != nil {
		return nil, err
	}
	src := f.results[conn.ID+"|"+query]
	out := make([]model.Pull, len(src))
	copy(out, src)
	return out, nil
}

func (f *fakeProvider) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}

type fakeConnectionStore struct {
	mu    sync.Mutex
	conns []model.Connection
}

func (f *fakeConnectionStore) List(_ context.Context) ([]model.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Connection(nil), f.conns...), nil
}

func (f *fakeConnectionStore) Get(_ context.Context, id string) (model.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		if c.ID == id {
			return c, nil
		}
	}
	return model.Connection{}, driven.ErrConnectionNotFound
}

func (f *fakeConnectionStore) Put(_ context.Context, conn model.Connection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.conns {
		if c.ID == conn.ID {
			f.conns[i] = conn
			return nil
		}
	}
	f.conns = append(f.conns, conn)
	return nil
}

func (f *fakeConnectionStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.conns {
		if c.ID == id {
			f.conns = append(f.conns[:i], f.conns[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeConnectionStore) UpdateViewer(_ context.Context, id string, viewer model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.conns {
		if c.ID == id {
			f.conns[i].Viewer = &viewer
			return nil
		}
	}
	return driven.ErrConnectionNotFound
}

type fakeSectionStore struct {
	sections []model.Section
}

func (f *fakeSectionStore) List(_ context.Context) ([]model.Section, error) {
	out := append([]model.Section(nil), f.sections...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeSectionStore) Get(_ context.Context, id string) (model.Section, error) {
	for _, s := range f.sections {
		if s.ID == id {
			return s, nil
		}
	}
	return model.Section{}, driven.ErrSectionNotFound
}

func (f *fakeSectionStore) Put(_ context.Context, section model.Section) error {
	for i, s := range f.sections {
		if s.ID == section.ID {
			f.sections[i] = section
			return nil
		}
	}
	f.sections = append(f.sections, section)
	return nil
}

func (f *fakeSectionStore) Delete(_ context.Context, id string) error {
	for i, s := range f.sections {
		if s.ID == id {
			f.sections = append(f.sections[:i], f.sections[i+1:]...)
			return nil
		}
	}
	return driven.ErrSectionNotFound
}

type fakeStarStore struct {
	starred map[string]bool
}

func (f *fakeStarStore) ListStarred(_ context.Context) (map[string]bool, error) {
	out := make(map[string]bool, len(f.starred))
	for k, v := range f.starred {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStarStore) SetStarred(_ context.Context, uid string, starred bool) error {
	if f.starred == nil {
		f.starred = make(map[string]bool)
	}
	if starred {
		f.starred[uid] = true
	} else {
		delete(f.starred, uid)
	}
	return nil
}

type fakePullStore struct {
	pulls map[string]model.Pull
	order []string
}

func newFakePullStore(pulls ...model.Pull) *fakePullStore {
	f := &fakePullStore{pulls: make(map[string]model.Pull)}
	for _, p := range pulls {
		f.pulls[p.UID] = p
		f.order = append(f.order, p.UID)
	}
	return f
}

func (f *fakePullStore) List(_ context.Context, filter driven.PullFilter) ([]model.Pull, error) {
	var out []model.Pull
	for _, uid := range f.order {
		p := f.pulls[uid]
		if filter.Starred && !p.Starred {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePullStore) Get(_ context.Context, uid string) (model.Pull, error) {
	p, ok := f.pulls[uid]
	if !ok {
		return model.Pull{}, driven.ErrPullNotFound
	}
	return p, nil
}

func (f *fakePullStore) ListUIDs(_ context.Context) ([]string, error) {
	return append([]string(nil), f.order...), nil
}

func (f *fakePullStore) Reconcile(_ context.Context, stale []string, fresh []model.Pull) error {
	drop := make(map[string]bool, len(stale))
	for _, uid := range stale {
		drop[uid] = true
		delete(f.pulls, uid)
	}
	kept := f.order[:0]
	for _, uid := range f.order {
		if !drop[uid] {
			kept = append(kept, uid)
		}
	}
	f.order = kept

	for _, p := range fresh {
		if _, ok := f.pulls[p.UID]; !ok {
			f.order = append(f.order, p.UID)
		}
		f.pulls[p.UID] = p
	}
	return nil
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
