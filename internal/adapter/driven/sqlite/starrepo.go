package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StarStore = (*StarRepo)(nil)

// StarRepo is the SQLite implementation of the StarStore port interface.
type StarRepo struct {
	db *DB
}

// NewStarRepo creates a new StarRepo backed by the given DB.
func NewStarRepo(db *DB) *StarRepo {
	return &StarRepo{db: db}
}

// ListStarred returns the set of starred pull uids.
func (r *StarRepo) ListStarred(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.Reader.QueryContext(ctx, `SELECT uid FROM stars`)
	if err != nil {
		return nil, fmt.Errorf("list stars: %w", err)
	}
	defer rows.Close()

	starred := make(map[string]bool)
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan star: %w", err)
		}
		starred[uid] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stars: %w", err)
	}

	return starred, nil
}

// SetStarred records or clears a star and mirrors it onto the cached pull, if
// any, in one transaction. Starring an uncached uid is allowed.
func (r *StarRepo) SetStarred(ctx context.Context, uid string, starred bool) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if starred {
		const insertQuery = `INSERT OR IGNORE INTO stars (uid, starred_at) VALUES (?, ?)`
		if _, err := tx.ExecContext(ctx, insertQuery, uid, formatTime(time.Now())); err != nil {
			return fmt.Errorf("star %s: %w", uid, err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `DELETE FROM stars WHERE uid = ?`, uid); err != nil {
			return fmt.Errorf("unstar %s: %w", uid, err)
		}
	}

	const updateQuery = `UPDATE pulls SET starred = ? WHERE uid = ?`
	if _, err := tx.ExecContext(ctx, updateQuery, boolInt(starred), uid); err != nil {
		return fmt.Errorf("update starred flag of %s: %w", uid, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit star for %s: %w", uid, err)
	}

	return nil
}
