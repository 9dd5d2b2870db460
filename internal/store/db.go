package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Store methods take the narrowest of these they need, so the same method
// runs against the pool or inside a *sqlx.Tx.

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is the pool handle outside a transaction.
type DB interface {
	Execer
	Getter
	Selecter
}

var (
	_ DB = (*sqlx.DB)(nil)
	_ DB = (*sqlx.Tx)(nil)
)
