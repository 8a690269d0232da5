package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// ErrConnectionNotFound indicates the requested connection does not exist.
var ErrConnectionNotFound = errors.New("connection not found")

// ErrEncryptionKeyNotSet is returned when an encrypted token is read without
// PULLDASH_SECRET_KEY configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set PULLDASH_SECRET_KEY")

// ConnectionStore defines the driven port for connection persistence.
// Tokens cross this boundary in plaintext; adapters may encrypt at rest.
type ConnectionStore interface {
	List(ctx context.Context) ([]model.Connection, error)
	// Get returns ErrConnectionNotFound if the id is unknown.
	Get(ctx context.Context, id string) (model.Connection, error)
	// Put inserts or replaces a connection. A nil conn.Viewer clears the
	// cached viewer.
	Put(ctx context.Context, conn model.Connection) error
	Delete(ctx context.Context, id string) error
	// UpdateViewer overwrites the cached viewer profile of a connection.
	UpdateViewer(ctx context.Context, id string, viewer model.Profile) error
}
