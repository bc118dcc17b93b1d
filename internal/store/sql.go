// internal/store/sql.go
//
// SQL backend (MySQL or SQLite through sqlx).
//
// Schema
// ------
//
//	session_kv (scope VARCHAR(64), k VARCHAR(64), v TEXT, PRIMARY KEY (scope, k))
//
// The table is created on open.  Upserts use REPLACE INTO, which both
// dialects accept, so no driver-specific SQL is needed.
package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

const (
	qCreate = `CREATE TABLE IF NOT EXISTS session_kv (
    scope VARCHAR(64) NOT NULL,
    k     VARCHAR(64) NOT NULL,
    v     TEXT        NOT NULL,
    PRIMARY KEY (scope, k)
)`
	qLoad   = `SELECT v FROM session_kv WHERE scope = ? AND k = ?`
	qSave   = `REPLACE INTO session_kv (scope, k, v) VALUES (?, ?, ?)`
	qDelete = `DELETE FROM session_kv WHERE scope = ? AND k = ?`
)

// SQL stores each key as one row.
type SQL struct {
	db *sqlx.DB
}

// NewSQL ensures the session_kv table exists and returns the backend.  The
// backend takes ownership of db and closes it on Close.
func NewSQL(ctx context.Context, db *sqlx.DB) (*SQL, error) {
	if _, err := db.ExecContext(ctx, qCreate); err != nil {
		return nil, err
	}
	return &SQL{db: db}, nil
}

func (s *SQL) Load(ctx context.Context, scope, key string) (string, bool, error) {
	var v string
	err := s.db.GetContext(ctx, &v, qLoad, scope, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQL) Save(ctx context.Context, scope, key, value string) error {
	_, err := s.db.ExecContext(ctx, qSave, scope, key, value)
	return err
}

func (s *SQL) Delete(ctx context.Context, scope, key string) error {
	_, err := s.db.ExecContext(ctx, qDelete, scope, key)
	return err
}

func (s *SQL) Close() error { return s.db.Close() }
