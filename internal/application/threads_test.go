package application_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/pulldash/internal/application"
	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func comment(id, parent, login string, minute int) model.Comment {
	return model.Comment{
		ID:        id,
		ParentID:  parent,
		Author:    model.User{Login: login},
		CreatedAt: t0.Add(time.Duration(minute) * time.Minute),
	}
}

func ids(thread application.Thread) []string {
	var out []string
	for _, c := range thread.Comments {
		out = append(out, c.ID)
	}
	return out
}

func TestGroupThreads_Empty(t *testing.T) {
	assert.Nil(t, application.GroupThreads(nil))
}

func TestGroupThreads_ReplyChains(t *testing.T) {
	comments := []model.Comment{
		comment("3", "1", "bob", 3),
		comment("1", "", "alice", 1),
		comment("2", "", "carol", 2),
		comment("4", "3", "alice", 4),
		comment("5", "2", "dave", 5),
	}

	threads := application.GroupThreads(comments)
	require.Len(t, threads, 2)

	assert.Equal(t, []string{"1", "3", "4"}, ids(threads[0]))
	assert.Equal(t, []string{"2", "5"}, ids(threads[1]))
	assert.Equal(t, "1", threads[0].Root().ID)

	// Input order untouched.
	assert.Equal(t, "3", comments[0].ID)
}

func TestGroupThreads_MissingParentStartsThread(t *testing.T) {
	threads := application.GroupThreads([]model.Comment{
		comment("10", "gone", "alice", 1),
		comment("11", "10", "bob", 2),
	})

	require.Len(t, threads, 1)
	assert.Equal(t, []string{"10", "11"}, ids(threads[0]))
}

func TestGroupThreads_ParentCycleTerminates(t *testing.T) {
	threads := application.GroupThreads([]model.Comment{
		comment("a", "b", "alice", 1),
		comment("b", "a", "bob", 2),
	})

	total := 0
	for _, th := range threads {
		total += len(th.Comments)
	}
	assert.Equal(t, 2, total)
}
