package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"

	"github.com/icvsb/icvsb/pkg/database"
)

// NotFound returns a 404 HTTP error with a descriptive message
func NotFound(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// BadRequest returns a 400 HTTP error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

// Internal returns a 500 HTTP error
func Internal(message string) error {
	return httperror.NewHTTPError(http.StatusInternalServerError, message)
}

// Queryer is the statement surface shared by the pool and an open
// transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

// Repository provides common database access for the typed repositories
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new base repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// DB returns the database instance
func (r *Repository) DB() database.DB {
	return r.db
}

// conn returns the transaction carried on ctx when one is open, the
// pool otherwise. On a single-connection store a statement sent to the
// pool while a transaction holds the connection would block forever,
// so everything under a transaction must run through it.
func (r *Repository) conn(ctx context.Context) Queryer {
	if tx := database.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}
