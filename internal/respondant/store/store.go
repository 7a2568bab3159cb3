// Package store holds the respondant record stores: an in-memory store with a
// vantage-point tree, a PostGIS store and a Redis GEO decorator over either.
package store

import (
	"context"
	"sort"

	"rescue/internal/respondant/models"
	"rescue/pkg/domain"
	"rescue/pkg/geo"
)

// Store is implemented by InMemory, PostgresStore and GeoIndexed.
type Store interface {
	Create(ctx context.Context, r *models.Respondant) error
	FindByID(ctx context.Context, id domain.RespondantID) (*models.Respondant, error)
	FindMany(ctx context.Context, ids []domain.RespondantID) ([]*models.Respondant, error)
	List(ctx context.Context) ([]*models.Respondant, error)
	Count(ctx context.Context) (int, error)
	Execute(ctx context.Context, id domain.RespondantID, mutate func(*models.Respondant) error) (*models.Respondant, error)
	Delete(ctx context.Context, id domain.RespondantID) (*models.Respondant, error)
	NearestCandidates(ctx context.Context, p geo.Point, maxDistance float64) ([]models.Candidate, error)
}

var (
	_ Store = (*InMemory)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*GeoIndexed)(nil)
)

// searchEffort is the number of vantage point candidates examined per node
// when building the in-memory tree.
const searchEffort = 3

// sortCandidates orders by distance, keeping the incoming order for equal
// distances.
func sortCandidates(cs []models.Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].Distance < cs[j].Distance
	})
}

func sortSites(ss []site) {
	sort.Slice(ss, func(i, j int) bool { return ss[i].seq < ss[j].seq })
}

func sortEntries(es []entry) {
	sort.Slice(es, func(i, j int) bool { return es[i].seq < es[j].seq })
}
