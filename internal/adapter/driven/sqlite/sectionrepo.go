package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SectionStore = (*SectionRepo)(nil)

// SectionRepo is the SQLite implementation of the SectionStore port interface.
type SectionRepo struct {
	db *DB
}

// NewSectionRepo creates a new SectionRepo backed by the given DB.
func NewSectionRepo(db *DB) *SectionRepo {
	return &SectionRepo{db: db}
}

// List returns all sections ordered by position.
func (r *SectionRepo) List(ctx context.Context) ([]model.Section, error) {
	const query = `SELECT id, label, search, position, notified, attention FROM sections ORDER BY position, id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}

	return sections, nil
}

// Get retrieves a section by id.
func (r *SectionRepo) Get(ctx context.Context, id string) (model.Section, error) {
	const query = `SELECT id, label, search, position, notified, attention FROM sections WHERE id = ?`

	s, err := scanSection(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Section{}, fmt.Errorf("get section %s: %w", id, driven.ErrSectionNotFound)
	}
	if err != nil {
		return model.Section{}, fmt.Errorf("get section %s: %w", id, err)
	}

	return s, nil
}

// Put inserts or replaces a section.
func (r *SectionRepo) Put(ctx context.Context, s model.Section) error {
	const query = `
		INSERT INTO sections (id, label, search, position, notified, attention)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			search = excluded.search,
			position = excluded.position,
			notified = excluded.notified,
			attention = excluded.attention
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		s.ID, s.Label, s.Search, s.Position, boolInt(s.Notified), boolInt(s.Attention),
	)
	if err != nil {
		return fmt.Errorf("put section %s: %w", s.ID, err)
	}

	return nil
}

// Delete removes a section and the cached pull memberships that reference it.
// Pulls themselves stay until the next sync drops them.
func (r *SectionRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	result, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete section %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete section %s: %w", id, driven.ErrSectionNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pull_sections WHERE section_id = ?`, id); err != nil {
		return fmt.Errorf("delete memberships of section %s: %w", id, err)
	}

	return tx.Commit()
}

func scanSection(s scanner) (model.Section, error) {
	var section model.Section
	var notified, attention int

	err := s.Scan(&section.ID, &section.Label, &section.Search, &section.Position, &notified, &attention)
	if err != nil {
		return model.Section{}, err
	}

	section.Notified = notified != 0
	section.Attention = attention != 0
	return section, nil
}
