package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id               TEXT PRIMARY KEY,
	username         TEXT NOT NULL UNIQUE,
	password_hash    TEXT NOT NULL,
	badge            TEXT NOT NULL DEFAULT '',
	name_style       TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT '',
	has_premium_pack INTEGER NOT NULL DEFAULT 0,
	has_theme_pack   INTEGER NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL
);`

const sqliteSelect = `SELECT id, username, password_hash, badge, name_style, status,
	has_premium_pack, has_theme_pack, created_at, updated_at FROM accounts`

// SQLiteStore keeps accounts in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "file:room.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; also keeps :memory: databases on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create accounts table: %w", err)
	}
	log.Info().Str("module", "store").Str("driver", "sqlite").Msg("account store ready")
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) FindByName(ctx context.Context, username string) (*domain.Account, error) {
	return s.getOne(ctx, sqliteSelect+` WHERE username = ?`, username)
}

func (s *SQLiteStore) FindByID(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	return s.getOne(ctx, sqliteSelect+` WHERE id = ?`, string(id))
}

func (s *SQLiteStore) getOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var (
		acc              domain.Account
		id               string
		premium, theme   bool
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&id,
		&acc.Username,
		&acc.PasswordHash,
		&acc.Badge,
		&acc.NameStyle,
		&acc.Status,
		&premium,
		&theme,
		&created,
		&updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrAccountNotFound
		}
		return nil, mapSQLiteError(err)
	}
	acc.ID = domain.AccountID(id)
	acc.HasPremiumPack, acc.HasThemePack = premium, theme
	acc.CreatedAt, acc.UpdatedAt = time.UnixMilli(created).UTC(), time.UnixMilli(updated).UTC()
	return &acc, nil
}

func (s *SQLiteStore) Create(ctx context.Context, acc *domain.Account) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO accounts
		(id, username, password_hash, badge, name_style, status, has_premium_pack, has_theme_pack, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(acc.ID), acc.Username, acc.PasswordHash, acc.Badge, acc.NameStyle, acc.Status,
		acc.HasPremiumPack, acc.HasThemePack, acc.CreatedAt.UnixMilli(), acc.UpdatedAt.UnixMilli(),
	)
	return mapSQLiteError(err)
}

func (s *SQLiteStore) UpdateAttributes(ctx context.Context, id domain.AccountID, patch domain.AccountPatch) error {
	cols, args := setClause(patch)
	if len(cols) == 0 {
		return nil
	}
	set := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		set = append(set, c+" = ?")
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UnixMilli(), string(id))

	res, err := s.db.ExecContext(ctx, `UPDATE accounts SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return mapSQLiteError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func mapSQLiteError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	code := se.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")) {
		return core.ErrAccountExists
	}
	return err
}
