package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ActivityStore = (*ActivityRepo)(nil)

// ActivityRepo is the SQLite implementation of the ActivityStore port interface.
// Refresh times are stored as Unix milliseconds.
type ActivityRepo struct {
	db *DB
}

// NewActivityRepo creates a new ActivityRepo backed by the given DB.
func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// Get returns the activity and whether it exists.
func (r *ActivityRepo) Get(ctx context.Context, name string) (model.Activity, bool, error) {
	const query = `SELECT name, running, refresh_time, last_error FROM activities WHERE name = ?`

	a, err := scanActivity(r.db.Reader.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Activity{}, false, nil
	}
	if err != nil {
		return model.Activity{}, false, fmt.Errorf("get activity %s: %w", name, err)
	}

	return a, true, nil
}

// List returns all activities ordered by name.
func (r *ActivityRepo) List(ctx context.Context) ([]model.Activity, error) {
	const query = `SELECT name, running, refresh_time, last_error FROM activities ORDER BY name`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}

	return activities, nil
}

// TryStart checks and sets the running flag inside one write transaction. The
// writer pool holds a single connection, so concurrent callers serialize here
// and at most one of them sees the activity as idle.
func (r *ActivityRepo) TryStart(ctx context.Context, name string, interval time.Duration, force bool, now time.Time) (bool, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	const selectQuery = `SELECT name, running, refresh_time, last_error FROM activities WHERE name = ?`
	a, err := scanActivity(tx.QueryRowContext(ctx, selectQuery, name))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		a = model.Activity{Name: name, RefreshTime: time.UnixMilli(0).UTC()}
	case err != nil:
		return false, fmt.Errorf("read activity %s: %w", name, err)
	}

	if !force && (a.Running || a.IsFresh(now, interval)) {
		return false, nil
	}

	const upsertQuery = `
		INSERT INTO activities (name, running, refresh_time, last_error)
		VALUES (?, 1, ?, '')
		ON CONFLICT(name) DO UPDATE SET running = 1
	`
	if _, err := tx.ExecContext(ctx, upsertQuery, name, a.RefreshTime.UnixMilli()); err != nil {
		return false, fmt.Errorf("mark activity %s running: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit activity %s: %w", name, err)
	}

	return true, nil
}

// Finish clears the running flag, moves the refresh time forward to now and
// records the run's error message.
func (r *ActivityRepo) Finish(ctx context.Context, name string, now time.Time, runErr error) error {
	const query = `
		INSERT INTO activities (name, running, refresh_time, last_error)
		VALUES (?, 0, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			running = 0,
			refresh_time = MAX(activities.refresh_time, excluded.refresh_time),
			last_error = excluded.last_error
	`

	var lastError string
	if runErr != nil {
		lastError = runErr.Error()
	}

	if _, err := r.db.Writer.ExecContext(ctx, query, name, now.UnixMilli(), lastError); err != nil {
		return fmt.Errorf("finish activity %s: %w", name, err)
	}

	return nil
}

// ResetRunning clears every running flag.
func (r *ActivityRepo) ResetRunning(ctx context.Context) error {
	if _, err := r.db.Writer.ExecContext(ctx, `UPDATE activities SET running = 0 WHERE running = 1`); err != nil {
		return fmt.Errorf("reset running activities: %w", err)
	}
	return nil
}

func scanActivity(s scanner) (model.Activity, error) {
	var a model.Activity
	var running int
	var refreshMillis int64

	if err := s.Scan(&a.Name, &running, &refreshMillis, &a.LastError); err != nil {
		return model.Activity{}, err
	}

	a.Running = running != 0
	a.RefreshTime = time.UnixMilli(refreshMillis).UTC()
	return a, nil
}
