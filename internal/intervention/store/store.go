// Package store persists interventions in memory or in PostgreSQL.
package store

import (
	"context"

	"rescue/internal/intervention/models"
	"rescue/pkg/domain"
)

// Store is implemented by InMemory and PostgresStore.
type Store interface {
	Create(ctx context.Context, i *models.Intervention) error
	FindByID(ctx context.Context, id domain.InterventionID) (*models.Intervention, error)
	// Scan calls fn for every intervention matching f, in insertion order,
	// until fn returns false.
	Scan(ctx context.Context, f models.Filter, fn func(*models.Intervention) bool) error
	Delete(ctx context.Context, id domain.InterventionID) (*models.Intervention, error)
	DeleteAll(ctx context.Context) (int, error)
}

var (
	_ Store = (*InMemory)(nil)
	_ Store = (*PostgresStore)(nil)
)
