//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "dealbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	now func() time.Time
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, now: time.Now}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, &PersistenceError{Op: "migrate", Err: err}
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Seen(ctx context.Context, asin string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	asin = normalizeASIN(asin)
	if asin == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM published WHERE asin = ?`, asin).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &PersistenceError{Op: "seen", Err: err}
	}
	return true, nil
}

func (s *sqliteStore) CanPost(ctx context.Context, asin string, cooldown time.Duration) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	asin = normalizeASIN(asin)
	if asin == "" {
		return true, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT at FROM published_log WHERE asin = ? ORDER BY at DESC LIMIT 1`, asin).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, &PersistenceError{Op: "can_post", Err: err}
	}
	return s.now().Sub(time.UnixMilli(ms)) > cooldown, nil
}

func (s *sqliteStore) MarkPublished(ctx context.Context, asin string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	asin = normalizeASIN(asin)
	if asin == "" {
		return nil
	}
	now := s.now().UTC().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "mark", Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO published(asin) VALUES(?) ON CONFLICT(asin) DO NOTHING`, asin); err != nil {
		_ = tx.Rollback()
		return &PersistenceError{Op: "mark", Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO published_log(asin, at) VALUES(?,?)`, asin, now); err != nil {
		_ = tx.Rollback()
		return &PersistenceError{Op: "mark", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "mark", Err: err}
	}
	return nil
}

func (s *sqliteStore) Reset(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "reset", Err: err}
	}
	for _, q := range []string{`DELETE FROM published`, `DELETE FROM published_log`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return &PersistenceError{Op: "reset", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "reset", Err: err}
	}
	s.log.Info("ledger reset")
	return nil
}

func (s *sqliteStore) Cursor(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cursor WHERE id = 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, &PersistenceError{Op: "cursor", Err: err}
	}
	if v < 0 {
		s.log.Warn("negative rotation cursor, falling back to 0")
		return 0, nil
	}
	return v, nil
}

func (s *sqliteStore) SetCursor(ctx context.Context, v int) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cursor(id, value) VALUES(1, ?)
		 ON CONFLICT(id) DO UPDATE SET value=excluded.value`, v)
	if err != nil {
		return &PersistenceError{Op: "cursor", Err: err}
	}
	return nil
}
