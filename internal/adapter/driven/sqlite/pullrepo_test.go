package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

func TestPullRepo_ReconcileRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPullRepo(db)
	ctx := context.Background()

	p := makePull("gh", "101", "acme/api", 7, t0)
	p.Additions, p.Deletions, p.ChangedFiles = 10, 3, 2
	p.RequestedReviewers = []model.User{{Login: "alice"}}
	p.RequestedTeams = []model.Team{{Org: "acme", Slug: "backend", Name: "Backend"}}
	p.Reviews = []model.Review{{Author: model.User{Login: "bob"}, State: model.ReviewStateApproved, CreatedAt: t0}}
	p.Discussions = []model.Discussion{{
		ID:       "d1",
		Resolved: true,
		Path:     "main.go",
		Line:     12,
		Comments: []model.Comment{
			{ID: "1", Author: model.User{Login: "bob"}, Body: "nit", CreatedAt: t0},
			{ID: "2", ParentID: "1", Author: model.User{Login: "octocat"}, Body: "fixed", CreatedAt: t0.Add(time.Minute)},
		},
	}}
	p.Sections = []string{"team", "mine"}
	p.Starred = true
	p.Attention = &model.Attention{Set: true, Reason: "bob left a comment"}

	require.NoError(t, NewStarRepo(db).SetStarred(ctx, p.UID, true))
	require.NoError(t, repo.Reconcile(ctx, nil, []model.Pull{p}))

	got, err := repo.Get(ctx, p.UID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestPullRepo_GetNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPullRepo(db)

	_, err := repo.Get(context.Background(), "gh:missing")
	assert.ErrorIs(t, err, driven.ErrPullNotFound)
}

func TestPullRepo_AttentionNilWhenNotEvaluated(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPullRepo(db)
	ctx := context.Background()

	evaluated := makePull("gh", "1", "acme/api", 1, t0)
	evaluated.Attention = &model.Attention{}
	skipped := makePull("gh", "2", "acme/api", 2, t0)

	require.NoError(t, repo.Reconcile(ctx, nil, []model.Pull{evaluated, skipped}))

	got, err := repo.Get(ctx, evaluated.UID)
	require.NoError(t, err)
	require.NotNil(t, got.Attention)
	assert.False(t, got.Attention.Set)

	got, err = repo.Get(ctx, skipped.UID)
	require.NoError(t, err)
	assert.Nil(t, got.Attention)
}

func TestPullRepo_ReconcileReplacesAndRemoves(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPullRepo(db)
	ctx := context.Background()

	a := makePull("gh", "1", "acme/api", 1, t0)
	a.Sections = []string{"mine", "team"}
	b := makePull("gh", "2", "acme/api", 2, t0)
	require.NoError(t, NewStarRepo(db).SetStarred(ctx, b.UID, true))
	require.NoError(t, repo.Reconcile(ctx, nil, []model.Pull{a, b}))

	a.Title = "Renamed"
	a.Sections = []string{"team"}
	require.NoError(t, repo.Reconcile(ctx, []string{b.UID}, []model.Pull{a}))

	uids, err := repo.ListUIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.UID}, uids)

	got, err := repo.Get(ctx, a.UID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, []string{"team"}, got.Sections)

	var memberships int
	require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM pull_sections`).Scan(&memberships))
	assert.Equal(t, 1, memberships)
}

func TestPullRepo_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPullRepo(db)
	ctx := context.Background()

	oldest := makePull("gh", "1", "acme/api", 1, t0)
	oldest.Sections = []string{"mine"}
	require.NoError(t, NewStarRepo(db).SetStarred(ctx, oldest.UID, true))

	middle := makePull("gh", "2", "acme/web", 2, t0.Add(time.Hour))
	middle.Sections = []string{"mine", "team"}
	middle.Attention = &model.Attention{Set: true, Reason: "Review is requested"}

	newest := makePull("ghe", "3", "corp/svc", 3, t0.Add(2*time.Hour))
	newest.Host = "ghe.example.com"
	newest.Sections = []string{"team"}
	newest.Attention = &model.Attention{}

	require.NoError(t, repo.Reconcile(ctx, nil, []model.Pull{oldest, middle, newest}))

	tests := []struct {
		name   string
		filter driven.PullFilter
		want   []string
	}{
		{"all newest first", driven.PullFilter{}, []string{"ghe:3", "gh:2", "gh:1"}},
		{"section", driven.PullFilter{SectionID: "mine"}, []string{"gh:2", "gh:1"}},
		{"host", driven.PullFilter{Host: "ghe.example.com"}, []string{"ghe:3"}},
		{"repo", driven.PullFilter{Repo: "acme/web"}, []string{"gh:2"}},
		{"starred", driven.PullFilter{Starred: true}, []string{"gh:1"}},
		{"attention", driven.PullFilter{Attention: true}, []string{"gh:2"}},
		{"combined", driven.PullFilter{SectionID: "team", Attention: true}, []string{"gh:2"}},
		{"no match", driven.PullFilter{SectionID: "nope"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pulls, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			var uids []string
			for _, p := range pulls {
				uids = append(uids, p.UID)
			}
			assert.Equal(t, tt.want, uids)
		})
	}
}

func TestPullRepo_ReconcileKeepsStarsSetDuringSync(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPullRepo(db)
	stars := NewStarRepo(db)
	ctx := context.Background()

	p := makePull("gh", "1", "acme/api", 1, t0)
	require.NoError(t, repo.Reconcile(ctx, nil, []model.Pull{p}))

	// The sync read the star set before the user starred the pull.
	require.NoError(t, stars.SetStarred(ctx, p.UID, true))
	p.Starred = false
	require.NoError(t, repo.Reconcile(ctx, nil, []model.Pull{p}))

	got, err := repo.Get(ctx, p.UID)
	require.NoError(t, err)
	assert.True(t, got.Starred)

	pulls, err := repo.List(ctx, driven.PullFilter{Starred: true})
	require.NoError(t, err)
	require.Len(t, pulls, 1)
	assert.Equal(t, p.UID, pulls[0].UID)

	// And the reverse: an unstar during the sync wins over a stale true.
	require.NoError(t, stars.SetStarred(ctx, p.UID, false))
	p.Starred = true
	require.NoError(t, repo.Reconcile(ctx, nil, []model.Pull{p}))

	got, err = repo.Get(ctx, p.UID)
	require.NoError(t, err)
	assert.False(t, got.Starred)
}

func TestPullRepo_ReconcileIsAllOrNothing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPullRepo(db)
	ctx := context.Background()

	a := makePull("gh", "1", "acme/api", 1, t0)
	b := makePull("gh", "2", "acme/api", 2, t0)
	require.NoError(t, repo.Reconcile(ctx, nil, []model.Pull{a, b}))

	renamed := a
	renamed.Title = "Renamed"
	broken := makePull("gh", "3", "acme/api", 3, t0)

	// Fails the second upsert, after the delete and the first upsert ran.
	_, err := db.Writer.ExecContext(ctx, `CREATE TRIGGER reject_pull BEFORE INSERT ON pulls
		WHEN NEW.uid = 'gh:3' BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	err = repo.Reconcile(ctx, []string{b.UID}, []model.Pull{renamed, broken})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gh:3")

	uids, err := repo.ListUIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.UID, b.UID}, uids)

	got, err := repo.Get(ctx, a.UID)
	require.NoError(t, err)
	assert.Equal(t, a.Title, got.Title)
}
