package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// setupTestDB creates a named shared in-memory SQLite database with the
// schema applied. The name comes from t.Name() so parallel tests stay isolated.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it cannot be misread as DSN query parameters.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", safeName, pragmas)

	db, err := openDB(context.Background(), dsn, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// testKey returns a fixed 32-byte AES-256 key.
func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func makePull(connID, id, repo string, number int, updated time.Time) model.Pull {
	return model.Pull{
		UID:          model.PullUID(connID, id),
		ConnectionID: connID,
		Host:         "github.com",
		ID:           id,
		Repo:         repo,
		Number:       number,
		Title:        fmt.Sprintf("Pull %d", number),
		URL:          fmt.Sprintf("https://github.com/%s/pull/%d", repo, number),
		State:        model.PullStatePending,
		CheckState:   model.CheckStateSuccess,
		CreatedAt:    updated.Add(-time.Hour),
		UpdatedAt:    updated,
		Author:       model.User{Login: "octocat", Name: "The Octocat"},
	}
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
