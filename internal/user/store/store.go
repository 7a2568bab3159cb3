// Package store persists users. Emails are unique ignoring case.
package store

import (
	"context"

	"rescue/internal/user/models"
	"rescue/pkg/domain"
)

type Store interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id domain.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Execute(ctx context.Context, id domain.UserID, mutate func(*models.User) error) (*models.User, error)
	Delete(ctx context.Context, id domain.UserID) (*models.User, error)
}

var (
	_ Store = (*InMemory)(nil)
	_ Store = (*PostgresStore)(nil)
)
