package application_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/pulldash/internal/application"
	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

func TestViewerSync_StoresProfiles(t *testing.T) {
	provider := newFakeProvider()
	provider.viewers["gh"] = model.Profile{User: me, Teams: []model.Team{backend}}
	conns := &fakeConnectionStore{conns: []model.Connection{{ID: "gh"}}}

	job := application.NewViewerSync(provider, conns)
	require.NoError(t, job.Run(context.Background()))

	conn, err := conns.Get(context.Background(), "gh")
	require.NoError(t, err)
	require.NotNil(t, conn.Viewer)
	assert.Equal(t, "me", conn.Viewer.User.Login)
	assert.Equal(t, []model.Team{backend}, conn.Viewer.Teams)
}

func TestViewerSync_FailingConnectionDoesNotStopOthers(t *testing.T) {
	provider := newFakeProvider()
	provider.errs["broken"] = errors.New("401 bad credentials")
	provider.viewers["gh"] = model.Profile{User: me}
	conns := &fakeConnectionStore{conns: []model.Connection{{ID: "broken"}, {ID: "gh"}}}

	job := application.NewViewerSync(provider, conns)
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	conn, getErr := conns.Get(context.Background(), "gh")
	require.NoError(t, getErr)
	require.NotNil(t, conn.Viewer)
	assert.Equal(t, "me", conn.Viewer.User.Login)

	broken, getErr := conns.Get(context.Background(), "broken")
	require.NoError(t, getErr)
	assert.Nil(t, broken.Viewer)
}
