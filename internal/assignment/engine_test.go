package assignment

//go:generate mockgen -source=engine.go -destination=mocks/mocks.go -package=mocks Directory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rescue/internal/assignment/mocks"
	"rescue/internal/platform/metrics"
	"rescue/internal/respondant/models"
	"rescue/internal/respondant/store"
	"rescue/pkg/domain"
	dErrors "rescue/pkg/domain-errors"
	"rescue/pkg/geo"
	"rescue/pkg/platform/sentinel"
	"rescue/pkg/testutil"
)

var incident = geo.NewPoint(6.66, 46.83)

// north returns a point meters due north of p.
func north(p geo.Point, meters float64) geo.Point {
	return geo.NewPoint(p.Lon(), p.Lat()+meters/(geo.EarthRadiusMeters*math.Pi/180))
}

func south(p geo.Point, meters float64) geo.Point {
	return north(p, -meters)
}

func respondantAt(name string, loc geo.Point, radius float64) *models.Respondant {
	return &models.Respondant{
		ID:        domain.NewRespondantID(),
		FirstName: name,
		LastName:  "Test",
		Phone:     "000",
		Location:  loc,
		Radius:    radius,
		CreatedAt: time.Now(),
	}
}

func candidate(r *models.Respondant, p geo.Point) models.Candidate {
	return models.Candidate{Respondant: r, Distance: geo.Distance(r.Location, p)}
}

type EngineSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	directory *mocks.MockDirectory
	metrics   *metrics.Metrics
	engine    *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.directory = mocks.NewMockDirectory(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	var err error
	s.engine, err = New(s.directory, WithMetrics(s.metrics), WithMaxSearchDistance(5000))
	s.Require().NoError(err)
}

func (s *EngineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *EngineSuite) TestNewRequiresDirectory() {
	_, err := New(nil)
	s.Require().Error(err)
}

func (s *EngineSuite) TestSmallestRadiusWinsOverProximity() {
	a := respondantAt("A", north(incident, 400), 500)
	b := respondantAt("B", north(incident, 100), 2000)
	s.directory.EXPECT().
		NearestCandidates(gomock.Any(), incident, 5000.0).
		Return([]models.Candidate{candidate(b, incident), candidate(a, incident)}, nil)

	d, err := s.engine.Assign(context.Background(), incident)
	s.Require().NoError(err)
	s.True(d.Assigned())
	s.Equal(a.ID, d.Respondant.ID)
	s.Equal(2, d.Candidates)
	s.InDelta(400, d.Distance, 0.01)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.AssignmentsTotal.WithLabelValues(metrics.OutcomeAssigned)))
}

func (s *EngineSuite) TestTightCoverageFirst() {
	x := respondantAt("X", north(incident, 800), 1000)
	y := respondantAt("Y", south(incident, 800), 5000)
	s.directory.EXPECT().
		NearestCandidates(gomock.Any(), incident, gomock.Any()).
		Return([]models.Candidate{candidate(y, incident), candidate(x, incident)}, nil)

	d, err := s.engine.Assign(context.Background(), incident)
	s.Require().NoError(err)
	s.Equal(x.ID, d.Respondant.ID)
}

func (s *EngineSuite) TestNearestButNotCoveringIsIgnored() {
	near := respondantAt("Near", north(incident, 50), 10)
	far := respondantAt("Far", north(incident, 3000), 3500)
	s.directory.EXPECT().
		NearestCandidates(gomock.Any(), incident, gomock.Any()).
		Return([]models.Candidate{candidate(near, incident), candidate(far, incident)}, nil)

	d, err := s.engine.Assign(context.Background(), incident)
	s.Require().NoError(err)
	s.Equal(far.ID, d.Respondant.ID)
}

func (s *EngineSuite) TestNoneCovering() {
	r := respondantAt("R", north(incident, 2000), 1999)
	s.directory.EXPECT().
		NearestCandidates(gomock.Any(), incident, gomock.Any()).
		Return([]models.Candidate{candidate(r, incident)}, nil)

	d, err := s.engine.Assign(context.Background(), incident)
	s.Require().NoError(err)
	s.False(d.Assigned())
	s.Equal(OutcomeUnassigned, d.Outcome)
	s.Nil(d.Respondant)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.AssignmentsTotal.WithLabelValues(metrics.OutcomeUnassigned)))
}

func (s *EngineSuite) TestEmptyDirectoryIsUnassigned() {
	s.directory.EXPECT().
		NearestCandidates(gomock.Any(), incident, gomock.Any()).
		Return(nil, sentinel.ErrNotFound)

	d, err := s.engine.Assign(context.Background(), incident)
	s.Require().NoError(err)
	s.False(d.Assigned())
	s.Zero(d.Candidates)
}

func (s *EngineSuite) TestDirectoryFailurePropagates() {
	cause := errors.New("connection refused")
	s.directory.EXPECT().
		NearestCandidates(gomock.Any(), incident, gomock.Any()).
		Return(nil, cause)

	_, err := s.engine.Assign(context.Background(), incident)
	s.Require().Error(err)
	s.ErrorIs(err, cause)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestSelect(t *testing.T) {
	t.Run("boundary counts as covered", func(t *testing.T) {
		r := respondantAt("Edge", north(incident, 1000), 0)
		r.Radius = geo.Distance(r.Location, incident)
		d := Select([]models.Candidate{candidate(r, incident)}, incident)
		require.True(t, d.Assigned())
	})

	t.Run("zero radius covers only its own point", func(t *testing.T) {
		here := respondantAt("Here", incident, 0)
		d := Select([]models.Candidate{candidate(here, incident)}, incident)
		require.True(t, d.Assigned())
		assert.Equal(t, here.ID, d.Respondant.ID)

		d = Select([]models.Candidate{candidate(here, north(incident, 1))}, north(incident, 1))
		assert.False(t, d.Assigned())
	})

	t.Run("equal radius prefers the closer respondant", func(t *testing.T) {
		far := respondantAt("Far", north(incident, 900), 1000)
		near := respondantAt("Near", south(incident, 300), 1000)
		d := Select([]models.Candidate{candidate(far, incident), candidate(near, incident)}, incident)
		assert.Equal(t, near.ID, d.Respondant.ID)
	})

	t.Run("full tie keeps directory order", func(t *testing.T) {
		first := respondantAt("First", north(incident, 500), 1000)
		second := respondantAt("Second", south(incident, 500), 1000)
		d := Select([]models.Candidate{candidate(first, incident), candidate(second, incident)}, incident)
		assert.Equal(t, first.ID, d.Respondant.ID)
	})

	t.Run("no candidates", func(t *testing.T) {
		d := Select(nil, incident)
		assert.Equal(t, OutcomeUnassigned, d.Outcome)
		assert.Zero(t, d.Candidates)
	})
}

func TestAssignAgainstInMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	dir := store.NewInMemory()
	engine, err := New(dir)
	require.NoError(t, err)

	d, err := engine.Assign(ctx, incident)
	require.NoError(t, err)
	assert.False(t, d.Assigned(), "empty directory")

	a := respondantAt("A", north(incident, 400), 500)
	b := respondantAt("B", north(incident, 100), 2000)
	require.NoError(t, dir.Create(ctx, b))
	require.NoError(t, dir.Create(ctx, a))

	d, err = engine.Assign(ctx, incident)
	require.NoError(t, err)
	require.True(t, d.Assigned())
	assert.Equal(t, a.ID, d.Respondant.ID)
}

func TestReassignmentFollowsDirectoryChanges(t *testing.T) {
	ctx := context.Background()
	dir := store.NewInMemory()
	engine, err := New(dir)
	require.NoError(t, err)

	wide := respondantAt("Wide", north(incident, 200), 5000)
	tight := respondantAt("Tight", south(incident, 800), 1000)

	testutil.Given(t, "a wide and a tight respondant both covering the incident", func(t *testing.T) {
		require.NoError(t, dir.Create(ctx, wide))
		require.NoError(t, dir.Create(ctx, tight))

		testutil.Then(t, "the tight respondant is assigned", func(t *testing.T) {
			d, err := engine.Assign(ctx, incident)
			require.NoError(t, err)
			require.True(t, d.Assigned())
			assert.Equal(t, tight.ID, d.Respondant.ID)
			assert.Equal(t, 2, d.Candidates)
		})
	})

	testutil.When(t, "the tight respondant moves out of range", func(t *testing.T) {
		_, err := dir.Execute(ctx, tight.ID, func(r *models.Respondant) error {
			r.Location = south(incident, 1500)
			return nil
		})
		require.NoError(t, err)

		testutil.Then(t, "the wide respondant takes over", func(t *testing.T) {
			d, err := engine.Assign(ctx, incident)
			require.NoError(t, err)
			require.True(t, d.Assigned())
			assert.Equal(t, wide.ID, d.Respondant.ID)
		})
	})
}

func TestLaterWiderRespondantDoesNotDisplaceTighterOne(t *testing.T) {
	ctx := context.Background()
	dir := store.NewInMemory()
	engine, err := New(dir)
	require.NoError(t, err)

	station := geo.NewPoint(6.6, 46.8)
	x := respondantAt("X", station, 1000)
	require.NoError(t, dir.Create(ctx, x))

	d, err := engine.Assign(ctx, station)
	require.NoError(t, err)
	require.True(t, d.Assigned())
	assert.Equal(t, x.ID, d.Respondant.ID)
	assert.Zero(t, d.Distance)

	y := respondantAt("Y", station, 5000)
	require.NoError(t, dir.Create(ctx, y))

	d, err = engine.Assign(ctx, north(station, 800))
	require.NoError(t, err)
	require.True(t, d.Assigned())
	assert.Equal(t, x.ID, d.Respondant.ID)
}
