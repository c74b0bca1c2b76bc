package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id               TEXT PRIMARY KEY,
	username         TEXT NOT NULL UNIQUE,
	password_hash    TEXT NOT NULL,
	badge            TEXT NOT NULL DEFAULT '',
	name_style       TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT '',
	has_premium_pack BOOLEAN NOT NULL DEFAULT FALSE,
	has_theme_pack   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
)`

const (
	pgSelect = `SELECT id, username, password_hash, badge, name_style, status,
	has_premium_pack, has_theme_pack, created_at, updated_at FROM accounts`
	pgInsert = `INSERT INTO accounts
	(id, username, password_hash, badge, name_style, status, has_premium_pack, has_theme_pack, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create accounts table: %w", err)
	}
	log.Info().Str("module", "store").Str("driver", "postgres").Msg("account store ready")
	return &PostgresStore{pool: pool, q: pool}, nil
}

func (s *PostgresStore) FindByName(ctx context.Context, username string) (*domain.Account, error) {
	return s.getOne(ctx, pgSelect+` WHERE username = $1`, username)
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	return s.getOne(ctx, pgSelect+` WHERE id = $1`, string(id))
}

func (s *PostgresStore) getOne(ctx context.Context, sql string, arg any) (*domain.Account, error) {
	var (
		acc domain.Account
		id  string
	)
	err := s.q.QueryRow(ctx, sql, arg).Scan(
		&id,
		&acc.Username,
		&acc.PasswordHash,
		&acc.Badge,
		&acc.NameStyle,
		&acc.Status,
		&acc.HasPremiumPack,
		&acc.HasThemePack,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrAccountNotFound
		}
		return nil, mapPgError(err)
	}
	acc.ID = domain.AccountID(id)
	return &acc, nil
}

func (s *PostgresStore) Create(ctx context.Context, acc *domain.Account) error {
	_, err := s.q.Exec(ctx, pgInsert,
		string(acc.ID), acc.Username, acc.PasswordHash, acc.Badge, acc.NameStyle, acc.Status,
		acc.HasPremiumPack, acc.HasThemePack, acc.CreatedAt, acc.UpdatedAt,
	)
	return mapPgError(err)
}

func (s *PostgresStore) UpdateAttributes(ctx context.Context, id domain.AccountID, patch domain.AccountPatch) error {
	sql, args := pgUpdate(id, patch, time.Now())
	if sql == "" {
		return nil
	}
	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgUpdate(id domain.AccountID, patch domain.AccountPatch, now time.Time) (string, []any) {
	cols, args := setClause(patch)
	if len(cols) == 0 {
		return "", nil
	}
	set := make([]string, 0, len(cols)+1)
	for i, c := range cols {
		set = append(set, c+" = $"+strconv.Itoa(i+1))
	}
	n := len(cols)
	set = append(set, "updated_at = $"+strconv.Itoa(n+1))
	args = append(args, now, string(id))
	return `UPDATE accounts SET ` + strings.Join(set, ", ") + ` WHERE id = $` + strconv.Itoa(n+2), args
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return core.ErrAccountExists
	}
	return err
}
