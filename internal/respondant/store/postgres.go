package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"rescue/internal/platform/postgres"
	"rescue/internal/respondant/models"
	"rescue/pkg/domain"
	"rescue/pkg/geo"
	"rescue/pkg/platform/sentinel"
	"rescue/pkg/platform/tx"
)

const respondantColumns = `id, first_name, last_name, phone,
	ST_X(location::geometry), ST_Y(location::geometry),
	radius, certificate_validity, creation_date`

// PostgresStore persists respondants in PostGIS. Nearest queries use the
// GiST index on the geography column with sphere distances.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Respondant) error {
	_, err := tx.Q(ctx, s.db).ExecContext(ctx, `
		INSERT INTO respondants (id, first_name, last_name, phone, location, radius, certificate_validity, creation_date)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography, $7, $8, $9)`,
		uuid.UUID(r.ID), r.FirstName, r.LastName, r.Phone,
		r.Location.Lon(), r.Location.Lat(),
		r.Radius, r.CertificateValidity, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert respondant: %w", postgres.Classify(err))
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.RespondantID) (*models.Respondant, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+respondantColumns+` FROM respondants WHERE id = $1`, uuid.UUID(id))
	r, err := scanRespondant(row)
	if err != nil {
		return nil, fmt.Errorf("find respondant: %w", postgres.Classify(err))
	}
	return r, nil
}

// FindMany returns the respondants that exist among ids, in the order given.
func (s *PostgresStore) FindMany(ctx context.Context, ids []domain.RespondantID) ([]*models.Respondant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx,
		`SELECT `+respondantColumns+` FROM respondants WHERE id = ANY($1::uuid[])`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("find respondants: %w", postgres.Classify(err))
	}
	found, err := collect(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[domain.RespondantID]*models.Respondant, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	out := make([]*models.Respondant, 0, len(found))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Respondant, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx,
		`SELECT `+respondantColumns+` FROM respondants ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list respondants: %w", postgres.Classify(err))
	}
	return collect(rows)
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := tx.Q(ctx, s.db).QueryRowContext(ctx, `SELECT count(*) FROM respondants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count respondants: %w", postgres.Classify(err))
	}
	return n, nil
}

// Execute locks the row, applies mutate and writes the result in one
// transaction.
func (s *PostgresStore) Execute(ctx context.Context, id domain.RespondantID, mutate func(*models.Respondant) error) (*models.Respondant, error) {
	var updated *models.Respondant
	err := tx.RunInTx(ctx, s.db, func(ctx context.Context) error {
		q := tx.Q(ctx, s.db)
		r, err := scanRespondant(q.QueryRowContext(ctx,
			`SELECT `+respondantColumns+` FROM respondants WHERE id = $1 FOR UPDATE`, uuid.UUID(id)))
		if err != nil {
			return fmt.Errorf("lock respondant: %w", postgres.Classify(err))
		}
		if err := mutate(r); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `
			UPDATE respondants
			SET first_name = $2, last_name = $3, phone = $4,
				location = ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography,
				radius = $7, certificate_validity = $8
			WHERE id = $1`,
			uuid.UUID(r.ID), r.FirstName, r.LastName, r.Phone,
			r.Location.Lon(), r.Location.Lat(), r.Radius, r.CertificateValidity,
		)
		if err != nil {
			return fmt.Errorf("update respondant: %w", postgres.Classify(err))
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.RespondantID) (*models.Respondant, error) {
	row := tx.Q(ctx, s.db).QueryRowContext(ctx,
		`DELETE FROM respondants WHERE id = $1 RETURNING `+respondantColumns, uuid.UUID(id))
	r, err := scanRespondant(row)
	if err != nil {
		return nil, fmt.Errorf("delete respondant: %w", postgres.Classify(err))
	}
	return r, nil
}

// NearestCandidates returns respondants within maxDistance meters of p,
// closest first, using sphere distances. It returns sentinel.ErrNotFound when
// the table is empty.
func (s *PostgresStore) NearestCandidates(ctx context.Context, p geo.Point, maxDistance float64) ([]models.Candidate, error) {
	rows, err := tx.Q(ctx, s.db).QueryContext(ctx, `
		WITH q AS (SELECT ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography AS g)
		SELECT `+respondantColumns+`
		FROM respondants, q
		WHERE ST_DWithin(location, q.g, $3, false)
		ORDER BY ST_Distance(location, q.g, false), seq`,
		p.Lon(), p.Lat(), maxDistance,
	)
	if err != nil {
		return nil, fmt.Errorf("nearest respondants: %w", postgres.Classify(err))
	}
	found, err := collect(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		n, err := s.Count(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, sentinel.ErrNotFound
		}
	}

	out := make([]models.Candidate, 0, len(found))
	for _, r := range found {
		out = append(out, models.Candidate{Respondant: r, Distance: geo.Distance(r.Location, p)})
	}
	sortCandidates(out)
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRespondant(row scanner) (*models.Respondant, error) {
	var (
		r        models.Respondant
		rawID    uuid.UUID
		lon, lat float64
	)
	if err := row.Scan(&rawID, &r.FirstName, &r.LastName, &r.Phone, &lon, &lat,
		&r.Radius, &r.CertificateValidity, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.ID = domain.RespondantID(rawID)
	r.Location = geo.NewPoint(lon, lat)
	return &r, nil
}

func collect(rows *sql.Rows) ([]*models.Respondant, error) {
	defer rows.Close()
	var out []*models.Respondant
	for rows.Next() {
		r, err := scanRespondant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan respondant: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate respondants: %w", postgres.Classify(err))
	}
	return out, nil
}
