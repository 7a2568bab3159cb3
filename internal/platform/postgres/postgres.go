package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"rescue/internal/platform/config"
	"rescue/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

// UniqueViolation is the SQLSTATE for unique constraint failures.
const UniqueViolation = "23505"

// Open connects through the pgx database/sql driver and verifies the
// connection. The schema is applied when cfg.Migrate is set.
func Open(ctx context.Context, cfg config.Postgres) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if cfg.Migrate {
		if err := Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == UniqueViolation
}

// Classify maps driver errors onto store sentinels: missing rows become
// ErrNotFound, unique violations ErrAlreadyUsed and connection failures
// ErrUnavailable. Anything else is returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return sentinel.ErrNotFound
	case IsUniqueViolation(err):
		return fmt.Errorf("%w: %w", sentinel.ErrAlreadyUsed, err)
	case isConnError(err):
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}

func isConnError(err error) bool {
	var connErr *pgconn.ConnectError
	var netErr net.Error
	return errors.As(err, &connErr) ||
		errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone)
}
