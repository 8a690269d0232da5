package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PullStore = (*PullRepo)(nil)

// PullRepo is the SQLite implementation of the PullStore port interface.
// Nested collections (author, reviewers, reviews, discussions) are serialized
// as JSON in TEXT columns; section membership lives in pull_sections.
type PullRepo struct {
	db *DB
}

// NewPullRepo creates a new PullRepo backed by the given DB.
func NewPullRepo(db *DB) *PullRepo {
	return &PullRepo{db: db}
}

const pullSelect = `
	SELECT uid, connection_id, host, provider_id, repo, number, title, url, state, check_state,
	       created_at, updated_at, additions, deletions, changed_files,
	       author, requested_reviewers, requested_teams, reviews, discussions,
	       starred, attention_set, attention_reason,
	       (SELECT json_group_array(section_id) FROM (
	           SELECT section_id FROM pull_sections ps WHERE ps.uid = pulls.uid ORDER BY ps.position
	       )) AS sections
	FROM pulls
`

// List returns cached pulls matching the filter, newest update first.
func (r *PullRepo) List(ctx context.Context, filter driven.PullFilter) ([]model.Pull, error) {
	var where []string
	var args []any

	if filter.SectionID != "" {
		where = append(where, `uid IN (SELECT uid FROM pull_sections WHERE section_id = ?)`)
		args = append(args, filter.SectionID)
	}
	if filter.Host != "" {
		where = append(where, `host = ?`)
		args = append(args, filter.Host)
	}
	if filter.Repo != "" {
		where = append(where, `repo = ?`)
		args = append(args, filter.Repo)
	}
	if filter.Starred {
		where = append(where, `starred = 1`)
	}
	if filter.Attention {
		where = append(where, `attention_set = 1`)
	}

	query := pullSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY updated_at DESC, uid`

	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pulls: %w", err)
	}
	defer rows.Close()

	var pulls []model.Pull
	for rows.Next() {
		p, err := scanPull(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pull: %w", err)
		}
		pulls = append(pulls, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pulls: %w", err)
	}

	return pulls, nil
}

// Get retrieves a cached pull by uid.
func (r *PullRepo) Get(ctx context.Context, uid string) (model.Pull, error) {
	p, err := scanPull(r.db.Reader.QueryRowContext(ctx, pullSelect+` WHERE uid = ?`, uid))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Pull{}, fmt.Errorf("get pull %s: %w", uid, driven.ErrPullNotFound)
	}
	if err != nil {
		return model.Pull{}, fmt.Errorf("get pull %s: %w", uid, err)
	}

	return p, nil
}

// ListUIDs returns every cached uid.
func (r *PullRepo) ListUIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Reader.QueryContext(ctx, `SELECT uid FROM pulls ORDER BY uid`)
	if err != nil {
		return nil, fmt.Errorf("list pull uids: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scan pull uid: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull uids: %w", err)
	}

	return uids, nil
}

// Reconcile deletes the stale pulls and upserts the fresh ones with their
// section membership in a single transaction. Readers see either the old or
// the new cache, never a mix.
//
// The starred flag is read from the stars table inside the transaction;
// p.Starred is ignored so a star set during a sync is never overwritten.
func (r *PullRepo) Reconcile(ctx context.Context, stale []string, fresh []model.Pull) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	for _, uid := range stale {
		// pull_sections rows cascade.
		if _, err := tx.ExecContext(ctx, `DELETE FROM pulls WHERE uid = ?`, uid); err != nil {
			return fmt.Errorf("delete pull %s: %w", uid, err)
		}
	}

	upsert, err := tx.PrepareContext(ctx, upsertPullQuery)
	if err != nil {
		return fmt.Errorf("prepare pull upsert: %w", err)
	}
	defer upsert.Close()

	clearSections, err := tx.PrepareContext(ctx, `DELETE FROM pull_sections WHERE uid = ?`)
	if err != nil {
		return fmt.Errorf("prepare section clear: %w", err)
	}
	defer clearSections.Close()

	insertSection, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO pull_sections (uid, section_id, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare section insert: %w", err)
	}
	defer insertSection.Close()

	syncedAt := formatTime(time.Now())
	for _, p := range fresh {
		args, err := pullArgs(p, syncedAt)
		if err != nil {
			return fmt.Errorf("encode pull %s: %w", p.UID, err)
		}
		if _, err := upsert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("upsert pull %s: %w", p.UID, err)
		}

		if _, err := clearSections.ExecContext(ctx, p.UID); err != nil {
			return fmt.Errorf("clear sections of pull %s: %w", p.UID, err)
		}
		for i, sectionID := range p.Sections {
			if _, err := insertSection.ExecContext(ctx, p.UID, sectionID, i); err != nil {
				return fmt.Errorf("insert section %s of pull %s: %w", sectionID, p.UID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reconcile: %w", err)
	}

	return nil
}

const upsertPullQuery = `
	INSERT INTO pulls (
		uid, connection_id, host, provider_id, repo, number, title, url, state, check_state,
		created_at, updated_at, additions, deletions, changed_files,
		author, requested_reviewers, requested_teams, reviews, discussions,
		starred, attention_set, attention_reason, synced_at
	) VALUES (
		?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
		EXISTS(SELECT 1 FROM stars WHERE stars.uid = ?), ?, ?, ?
	)
	ON CONFLICT(uid) DO UPDATE SET
		connection_id = excluded.connection_id,
		host = excluded.host,
		provider_id = excluded.provider_id,
		repo = excluded.repo,
		number = excluded.number,
		title = excluded.title,
		url = excluded.url,
		state = excluded.state,
		check_state = excluded.check_state,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		additions = excluded.additions,
		deletions = excluded.deletions,
		changed_files = excluded.changed_files,
		author = excluded.author,
		requested_reviewers = excluded.requested_reviewers,
		requested_teams = excluded.requested_teams,
		reviews = excluded.reviews,
		discussions = excluded.discussions,
		starred = excluded.starred,
		attention_set = excluded.attention_set,
		attention_reason = excluded.attention_reason,
		synced_at = excluded.synced_at
`

func pullArgs(p model.Pull, syncedAt string) ([]any, error) {
	author, err := json.Marshal(p.Author)
	if err != nil {
		return nil, fmt.Errorf("marshal author: %w", err)
	}
	reviewers, err := marshalList(p.RequestedReviewers)
	if err != nil {
		return nil, fmt.Errorf("marshal requested reviewers: %w", err)
	}
	teams, err := marshalList(p.RequestedTeams)
	if err != nil {
		return nil, fmt.Errorf("marshal requested teams: %w", err)
	}
	reviews, err := marshalList(p.Reviews)
	if err != nil {
		return nil, fmt.Errorf("marshal reviews: %w", err)
	}
	discussions, err := marshalList(p.Discussions)
	if err != nil {
		return nil, fmt.Errorf("marshal discussions: %w", err)
	}

	var attentionSet sql.NullInt64
	var attentionReason sql.NullString
	if p.Attention != nil {
		attentionSet = sql.NullInt64{Int64: int64(boolInt(p.Attention.Set)), Valid: true}
		attentionReason = sql.NullString{String: p.Attention.Reason, Valid: true}
	}

	checkState := p.CheckState
	if checkState == "" {
		checkState = model.CheckStateUnknown
	}

	return []any{
		p.UID, p.ConnectionID, p.Host, p.ID, p.Repo, p.Number, p.Title, p.URL,
		string(p.State), string(checkState),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
		p.Additions, p.Deletions, p.ChangedFiles,
		string(author), reviewers, teams, reviews, discussions,
		p.UID, attentionSet, attentionReason, syncedAt,
	}, nil
}

// marshalList encodes a slice as JSON, writing nil as an empty array.
func marshalList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func scanPull(s scanner) (model.Pull, error) {
	var p model.Pull
	var state, checkState, createdAt, updatedAt string
	var author, reviewers, teams, reviews, discussions, sections string
	var starred int
	var attentionSet sql.NullInt64
	var attentionReason sql.NullString

	err := s.Scan(
		&p.UID, &p.ConnectionID, &p.Host, &p.ID, &p.Repo, &p.Number, &p.Title, &p.URL,
		&state, &checkState, &createdAt, &updatedAt,
		&p.Additions, &p.Deletions, &p.ChangedFiles,
		&author, &reviewers, &teams, &reviews, &discussions,
		&starred, &attentionSet, &attentionReason, &sections,
	)
	if err != nil {
		return model.Pull{}, err
	}

	p.State = model.PullState(state)
	p.CheckState = model.CheckState(checkState)
	p.Starred = starred != 0

	p.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return model.Pull{}, fmt.Errorf("parse created_at: %w", err)
	}
	p.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return model.Pull{}, fmt.Errorf("parse updated_at: %w", err)
	}

	decoders := []struct {
		column string
		raw    string
		dst    any
	}{
		{"author", author, &p.Author},
		{"requested_reviewers", reviewers, &p.RequestedReviewers},
		{"requested_teams", teams, &p.RequestedTeams},
		{"reviews", reviews, &p.Reviews},
		{"discussions", discussions, &p.Discussions},
		{"sections", sections, &p.Sections},
	}
	for _, d := range decoders {
		if err := json.Unmarshal([]byte(d.raw), d.dst); err != nil {
			return model.Pull{}, fmt.Errorf("unmarshal %s: %w", d.column, err)
		}
	}

	if attentionSet.Valid {
		p.Attention = &model.Attention{Set: attentionSet.Int64 != 0, Reason: attentionReason.String}
	}

	return p, nil
}
