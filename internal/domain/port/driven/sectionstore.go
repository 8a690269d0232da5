package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

// ErrSectionNotFound indicates the requested section does not exist.
var ErrSectionNotFound = errors.New("section not found")

// SectionStore defines the driven port for section persistence.
type SectionStore interface {
	// List returns all sections ordered by position.
	List(ctx context.Context) ([]model.Section, error)
	Get(ctx context.Context, id string) (model.Section, error)
	Put(ctx context.Context, section model.Section) error
	Delete(ctx context.Context, id string) error
}
