package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"rescue/internal/intervention/models"
	"rescue/internal/platform/postgres"
	"rescue/pkg/domain"
	"rescue/pkg/geo"
	"rescue/pkg/platform/tx"
)

const interventionColumns = `id, description,
	ST_X(location::geometry), ST_Y(location::geometry),
	picture, reporter_id, respondant_id, active, creation_date`

// PostgresStore persists interventions. respondant_id carries no foreign key
// so deleting a respondant leaves its interventions untouched.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, i *models.Intervention) error {
	var respondant uuid.NullUUID
	if i.Respondant != nil {
		respondant = uuid.NullUUID{UUID: uuid.UUID(*i.Respondant), Valid: true}
	}
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO interventions (id, description, location, picture, reporter_id, respondant_id, active, creation_date)
		VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7, $8, $9)`,
		uuid.UUID(i.ID), i.Description,
		i.Location.Lon(), i.Location.Lat(),
		i.Picture, uuid.UUID(i.User), respondant, i.Active, i.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert intervention: %w", postgres.Classify(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.InterventionID) (*models.Intervention, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+interventionColumns+` FROM interventions WHERE id = $1`, uuid.UUID(id))
	i, err := scanIntervention(row)
	if err != nil {
		return nil, fmt.Errorf("find intervention: %w", postgres.Classify(err))
	}
	return i, nil
}

// Scan streams matching rows; nothing is buffered beyond the driver's own
// row batch.
func (s *PostgresStore) Scan(ctx context.Context, f models.Filter, fn func(*models.Intervention) bool) error {
	query := `SELECT ` + interventionColumns + ` FROM interventions WHERE TRUE`
	var args []any
	if f.Respondant != nil {
		args = append(args, uuid.UUID(*f.Respondant))
		query += fmt.Sprintf(" AND respondant_id = $%d", len(args))
	}
	if f.User != nil {
		args = append(args, uuid.UUID(*f.User))
		query += fmt.Sprintf(" AND reporter_id = $%d", len(args))
	}
	query += " ORDER BY seq"

	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scan interventions: %w", postgres.Classify(err))
	}
	defer rows.Close()
	for rows.Next() {
		i, err := scanIntervention(rows)
		if err != nil {
			return fmt.Errorf("scan intervention: %w", err)
		}
		if !fn(i) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate interventions: %w", postgres.Classify(err))
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.InterventionID) (*models.Intervention, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx,
		`DELETE FROM interventions WHERE id = $1 RETURNING `+interventionColumns, uuid.UUID(id))
	i, err := scanIntervention(row)
	if err != nil {
		return nil, fmt.Errorf("delete intervention: %w", postgres.Classify(err))
	}
	return i, nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) (int, error) {
	res, err := tx.Q(ctx, s.db).ExecContext(ctx, `DELETE FROM interventions`)
	if err != nil {
		return 0, fmt.Errorf("clear interventions: %w", postgres.Classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear interventions: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIntervention(row scanner) (*models.Intervention, error) {
	var (
		i          models.Intervention
		rawID      uuid.UUID
		reporter   uuid.UUID
		respondant uuid.NullUUID
		lon, lat   float64
	)
	if err := row.Scan(&rawID, &i.Description, &lon, &lat, &i.Picture,
		&reporter, &respondant, &i.Active, &i.CreatedAt); err != nil {
		return nil, err
	}
	i.ID = domain.InterventionID(rawID)
	i.User = domain.UserID(reporter)
	i.Location = geo.NewPoint(lon, lat)
	if respondant.Valid {
		id := domain.RespondantID(respondant.UUID)
		i.Respondant = &id
	}
	return &i, nil
}
