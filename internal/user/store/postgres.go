package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"rescue/internal/platform/postgres"
	"rescue/internal/user/models"
	"rescue/pkg/domain"
	"rescue/pkg/platform/tx"
)

const userColumns = `id, first_name, last_name, email, password_hash, registration_date`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create relies on the lower(email) unique index; a duplicate surfaces as
// sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, u *models.User) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, registration_date)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.UUID(u.ID), u.FirstName, u.LastName, u.Email, string(u.PasswordHash), u.RegisteredAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", postgres.Classify(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.UserID) (*models.User, error) {
	u, err := scanUser(tx.Q(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, uuid.UUID(id)))
	if err != nil {
		return nil, fmt.Errorf("find user: %w", postgres.Classify(err))
	}
	return u, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(tx.Q(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", postgres.Classify(err))
	}
	return u, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.User, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY last_name, first_name, email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", postgres.Classify(err))
	}
	defer rows.Close()
	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", postgres.Classify(err))
	}
	return out, nil
}

func (s *PostgresStore) Execute(ctx context.Context, id domain.UserID, mutate func(*models.User) error) (*models.User, error) {
	var updated *models.User
	err := tx.RunInTx(ctx, s.db, func(ctx context.Context) error {
		q := tx.Q(ctx, s.db)
		u, err := scanUser(q.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, uuid.UUID(id)))
		if err != nil {
			return fmt.Errorf("lock user: %w", postgres.Classify(err))
		}
		if err := mutate(u); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `
			UPDATE users SET first_name = $2, last_name = $3, email = $4, password_hash = $5
			WHERE id = $1`,
			uuid.UUID(u.ID), u.FirstName, u.LastName, u.Email, string(u.PasswordHash),
		)
		if err != nil {
			return fmt.Errorf("update user: %w", postgres.Classify(err))
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.UserID) (*models.User, error) {
	u, err := scanUser(tx.Q(ctx, s.db).QueryRowContext(ctx,
		`DELETE FROM users WHERE id = $1 RETURNING `+userColumns, uuid.UUID(id)))
	if err != nil {
		return nil, fmt.Errorf("delete user: %w", postgres.Classify(err))
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u     models.User
		rawID uuid.UUID
		hash  string
	)
	if err := row.Scan(&rawID, &u.FirstName, &u.LastName, &u.Email, &hash, &u.RegisteredAt); err != nil {
		return nil, err
	}
	u.ID = domain.UserID(rawID)
	u.PasswordHash = []byte(hash)
	return &u, nil
}
