package github_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/pulldash/internal/adapter/driven/github"
	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// countingFactory builds clients against server and records which
// connections a client was built for.
type countingFactory struct {
	server *httptest.Server
	built  []string
}

func (f *countingFactory) newClient(conn model.Connection) (*ghAdapter.Client, error) {
	f.built = append(f.built, conn.ID)
	return ghAdapter.NewClientWithHTTPClient(f.server.Client(), f.server.URL+"/", conn.Token)
}

func newTestRegistry(t *testing.T, maxClients int) (*ghAdapter.Registry, *countingFactory) {
	t.Helper()

	server := httptest.NewServer(viewerHandler(t, http.StatusOK))
	t.Cleanup(server.Close)

	factory := &countingFactory{server: server}
	return ghAdapter.NewRegistry(maxClients).WithFactory(factory.newClient), factory
}

func TestRegistry_ReusesClient(t *testing.T) {
	reg, factory := newTestRegistry(t, 4)
	ctx := context.Background()
	conn := model.Connection{ID: "gh", Token: "one"}

	profile, err := reg.GetViewer(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, "me", profile.User.Login)

	_, err = reg.GetViewer(ctx, conn)
	require.NoError(t, err)

	assert.Equal(t, []string{"gh"}, factory.built)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_RebuildsOnCredentialChange(t *testing.T) {
	reg, factory := newTestRegistry(t, 4)
	ctx := context.Background()

	_, err := reg.GetViewer(ctx, model.Connection{ID: "gh", Token: "one"})
	require.NoError(t, err)
	_, err = reg.GetViewer(ctx, model.Connection{ID: "gh", Token: "two"})
	require.NoError(t, err)
	_, err = reg.GetViewer(ctx, model.Connection{ID: "gh", Token: "two", BaseURL: "https://ghe.example.com/api/v3"})
	require.NoError(t, err)

	assert.Equal(t, []string{"gh", "gh", "gh"}, factory.built)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Invalidate(t *testing.T) {
	reg, factory := newTestRegistry(t, 4)
	ctx := context.Background()
	conn := model.Connection{ID: "gh", Token: "one"}

	_, err := reg.GetViewer(ctx, conn)
	require.NoError(t, err)

	reg.Invalidate("gh")
	reg.Invalidate("unknown")
	assert.Equal(t, 0, reg.Len())

	_, err = reg.GetViewer(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"gh", "gh"}, factory.built)
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	reg, factory := newTestRegistry(t, 2)
	ctx := context.Background()
	a := model.Connection{ID: "a", Token: "t"}
	b := model.Connection{ID: "b", Token: "t"}
	c := model.Connection{ID: "c", Token: "t"}

	for _, conn := range []model.Connection{a, b, a, c} {
		_, err := reg.GetViewer(ctx, conn)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"a", "b", "c"}, factory.built)

	// b was the least recently used and must be rebuilt; a is still cached.
	_, err := reg.GetViewer(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, factory.built)

	_, err = reg.GetViewer(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "b"}, factory.built)
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := ghAdapter.NewRegistry(0).WithFactory(func(model.Connection) (*ghAdapter.Client, error) {
		return nil, errors.New("bad url")
	})

	_, err := reg.SearchPulls(context.Background(), model.Connection{ID: "gh"}, "is:open")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection gh")
	assert.Equal(t, 0, reg.Len())
}
