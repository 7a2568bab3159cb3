//go:build integration

package store_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rescue/internal/respondant/models"
	"rescue/internal/respondant/store"
	"rescue/pkg/domain"
	"rescue/pkg/geo"
	"rescue/pkg/platform/sentinel"
	"rescue/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "respondants")
	s.Require().NoError(err)
}

func northOf(lon, lat, meters float64) (float64, float64) {
	return lon, lat + meters/(geo.EarthRadiusMeters*math.Pi/180)
}

func newRespondant(first string, lon, lat, radius float64) *models.Respondant {
	return &models.Respondant{
		ID:                  domain.NewRespondantID(),
		FirstName:           first,
		LastName:            "Doe",
		Phone:               "+41 79 000 00 00",
		Location:            geo.NewPoint(lon, lat),
		Radius:              radius,
		CertificateValidity: true,
		CreatedAt:           time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateFindUpdateDelete() {
	ctx := context.Background()
	r := newRespondant("Anna", 6.66, 46.83, 500)
	s.Require().NoError(s.store.Create(ctx, r))

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.InDeltaSlice([]float64{6.66, 46.83}, found.Location.Coordinates, 1e-9)
	s.Equal(500.0, found.Radius)

	s.ErrorIs(s.store.Create(ctx, r), sentinel.ErrAlreadyUsed)

	updated, err := s.store.Execute(ctx, r.ID, func(r *models.Respondant) error {
		r.Radius = 2000
		return nil
	})
	s.Require().NoError(err)
	s.Equal(2000.0, updated.Radius)

	boom := errors.New("boom")
	_, err = s.store.Execute(ctx, r.ID, func(*models.Respondant) error { return boom })
	s.ErrorIs(err, boom)
	found, err = s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(2000.0, found.Radius, "failed mutation rolls back")

	removed, err := s.store.Delete(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.ID, removed.ID)
	_, err = s.store.FindByID(ctx, r.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestNearestCandidates() {
	ctx := context.Background()
	p := geo.NewPoint(6.66, 46.83)

	_, err := s.store.NearestCandidates(ctx, p, 10000)
	s.ErrorIs(err, sentinel.ErrNotFound, "empty table")

	lon, lat := northOf(6.66, 46.83, 400)
	a := newRespondant("Anna", lon, lat, 500)
	lon, lat = northOf(6.66, 46.83, 100)
	b := newRespondant("Bert", lon, lat, 2000)
	lon, lat = northOf(6.66, 46.83, 50000)
	far := newRespondant("Fern", lon, lat, 100000)
	for _, r := range []*models.Respondant{a, b, far} {
		s.Require().NoError(s.store.Create(ctx, r))
	}

	got, err := s.store.NearestCandidates(ctx, p, 10000)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(b.ID, got[0].Respondant.ID)
	s.Equal(a.ID, got[1].Respondant.ID)
	s.InDelta(100, got[0].Distance, 0.5)

	got, err = s.store.NearestCandidates(ctx, geo.NewPoint(-70, -30), 1000)
	s.Require().NoError(err)
	s.Empty(got, "populated table with nothing in range")
}

func (s *PostgresStoreSuite) TestFindManyKeepsRequestOrder() {
	ctx := context.Background()
	a := newRespondant("Anna", 6.6, 46.8, 10)
	b := newRespondant("Bert", 6.7, 46.9, 10)
	s.Require().NoError(s.store.Create(ctx, a))
	s.Require().NoError(s.store.Create(ctx, b))

	got, err := s.store.FindMany(ctx, []domain.RespondantID{b.ID, domain.NewRespondantID(), a.ID})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(b.ID, got[0].ID)
	s.Equal(a.ID, got[1].ID)
}
