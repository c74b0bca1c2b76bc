// Package store persists accounts. SQLite is the default; Postgres is used
// when the room runs next to a shared database.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkeye/DigitalRoom/internal/config"
	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
)

// Open picks the driver named in cfg.
func Open(ctx context.Context, cfg config.Store) (core.AccountStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return OpenSQLite(ctx, cfg.DSN)
	case "postgres", "pgx":
		return OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// setClause lists the columns a patch touches, in a fixed order, with their
// values. updated_at is always last.
func setClause(p domain.AccountPatch) ([]string, []any) {
	var cols []string
	var args []any
	if p.Badge != nil {
		cols, args = append(cols, "badge"), append(args, *p.Badge)
	}
	if p.NameStyle != nil {
		cols, args = append(cols, "name_style"), append(args, *p.NameStyle)
	}
	if p.Status != nil {
		cols, args = append(cols, "status"), append(args, *p.Status)
	}
	if p.PasswordHash != nil {
		cols, args = append(cols, "password_hash"), append(args, *p.PasswordHash)
	}
	return cols, args
}
