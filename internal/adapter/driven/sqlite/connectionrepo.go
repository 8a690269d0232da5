package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/pulldash/internal/domain/model"
	"github.com/ericfisherdev/pulldash/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ConnectionStore = (*ConnectionRepo)(nil)

// ConnectionRepo is the SQLite implementation of the ConnectionStore port interface.
// Tokens are encrypted with AES-256-GCM when a key is configured and stored
// as-is otherwise. Rows written while encrypted cannot be read without the key.
type ConnectionRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil stores tokens in plaintext.
}

// NewConnectionRepo creates a new ConnectionRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable token encryption.
func NewConnectionRepo(db *DB, key []byte) *ConnectionRepo {
	return &ConnectionRepo{db: db, key: key}
}

const connectionColumns = `id, label, base_url, host, token, encrypted, orgs, viewer`

// List returns all connections in creation order.
func (r *ConnectionRepo) List(ctx context.Context) ([]model.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections ORDER BY rowid`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []model.Connection
	for rows.Next() {
		conn, err := r.scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}

	return conns, nil
}

// Get retrieves a connection by id.
func (r *ConnectionRepo) Get(ctx context.Context, id string) (model.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = ?`

	conn, err := r.scanConnection(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Connection{}, fmt.Errorf("get connection %s: %w", id, driven.ErrConnectionNotFound)
	}
	if err != nil {
		return model.Connection{}, fmt.Errorf("get connection %s: %w", id, err)
	}

	return conn, nil
}

// Put inserts or replaces a connection, viewer included. A nil Viewer clears
// the cached profile.
func (r *ConnectionRepo) Put(ctx context.Context, conn model.Connection) error {
	const query = `
		INSERT INTO connections (id, label, base_url, host, token, encrypted, orgs, viewer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label = excluded.label,
			base_url = excluded.base_url,
			host = excluded.host,
			token = excluded.token,
			encrypted = excluded.encrypted,
			orgs = excluded.orgs,
			viewer = excluded.viewer,
			updated_at = excluded.updated_at
	`

	token, encrypted := conn.Token, false
	if r.key != nil && conn.Token != "" {
		var err error
		token, err = encrypt(r.key, conn.Token)
		if err != nil {
			return fmt.Errorf("encrypt token for connection %s: %w", conn.ID, err)
		}
		encrypted = true
	}

	orgs := conn.Orgs
	if orgs == nil {
		orgs = []string{}
	}
	orgsJSON, err := json.Marshal(orgs)
	if err != nil {
		return fmt.Errorf("marshal orgs: %w", err)
	}

	var viewer sql.NullString
	if conn.Viewer != nil {
		b, err := json.Marshal(conn.Viewer)
		if err != nil {
			return fmt.Errorf("marshal viewer: %w", err)
		}
		viewer = sql.NullString{String: string(b), Valid: true}
	}

	now := formatTime(time.Now())
	_, err = r.db.Writer.ExecContext(ctx, query,
		conn.ID, conn.Label, conn.BaseURL, conn.Host, token, boolInt(encrypted),
		string(orgsJSON), viewer, now, now,
	)
	if err != nil {
		return fmt.Errorf("put connection %s: %w", conn.ID, err)
	}

	return nil
}

// Delete removes a connection together with the pulls fetched through it.
func (r *ConnectionRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	result, err := tx.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete connection %s: %w", id, driven.ErrConnectionNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pulls WHERE connection_id = ?`, id); err != nil {
		return fmt.Errorf("delete pulls of connection %s: %w", id, err)
	}

	return tx.Commit()
}

// UpdateViewer overwrites the cached viewer profile of a connection.
func (r *ConnectionRepo) UpdateViewer(ctx context.Context, id string, viewer model.Profile) error {
	const query = `UPDATE connections SET viewer = ?, updated_at = ? WHERE id = ?`

	b, err := json.Marshal(viewer)
	if err != nil {
		return fmt.Errorf("marshal viewer: %w", err)
	}

	result, err := r.db.Writer.ExecContext(ctx, query, string(b), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update viewer of connection %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update viewer of connection %s: %w", id, driven.ErrConnectionNotFound)
	}

	return nil
}

func (r *ConnectionRepo) scanConnection(s scanner) (model.Connection, error) {
	var conn model.Connection
	var token, orgsJSON string
	var encrypted int
	var viewer sql.NullString

	err := s.Scan(&conn.ID, &conn.Label, &conn.BaseURL, &conn.Host, &token, &encrypted, &orgsJSON, &viewer)
	if err != nil {
		return model.Connection{}, err
	}

	conn.Token = token
	if encrypted != 0 {
		if r.key == nil {
			return model.Connection{}, driven.ErrEncryptionKeyNotSet
		}
		conn.Token, err = decrypt(r.key, token)
		if err != nil {
			return model.Connection{}, fmt.Errorf("decrypt token for connection %s: %w", conn.ID, err)
		}
	}

	if err := json.Unmarshal([]byte(orgsJSON), &conn.Orgs); err != nil {
		return model.Connection{}, fmt.Errorf("unmarshal orgs: %w", err)
	}
	if len(conn.Orgs) == 0 {
		conn.Orgs = nil
	}

	if viewer.Valid {
		var profile model.Profile
		if err := json.Unmarshal([]byte(viewer.String), &profile); err != nil {
			return model.Connection{}, fmt.Errorf("unmarshal viewer: %w", err)
		}
		conn.Viewer = &profile
	}

	return conn, nil
}
