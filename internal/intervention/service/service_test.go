package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Assigner,RespondantLookup,UserLookup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rescue/internal/assignment"
	"rescue/internal/intervention/models"
	"rescue/internal/intervention/service/mocks"
	istore "rescue/internal/intervention/store"
	"rescue/internal/notify"
	"rescue/internal/platform/metrics"
	rmodels "rescue/internal/respondant/models"
	rservice "rescue/internal/respondant/service"
	rstore "rescue/internal/respondant/store"
	umodels "rescue/internal/user/models"
	"rescue/pkg/domain"
	dErrors "rescue/pkg/domain-errors"
	"rescue/pkg/geo"
	"rescue/pkg/platform/sentinel"
	"rescue/pkg/requestcontext"
)

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

type InterventionServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	store       *mocks.MockStore
	assigner    *mocks.MockAssigner
	respondants *mocks.MockRespondantLookup
	users       *mocks.MockUserLookup
	published   *recorder
	metrics     *metrics.Metrics
	service     *Service
}

func TestInterventionServiceSuite(t *testing.T) {
	suite.Run(t, new(InterventionServiceSuite))
}

func (s *InterventionServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.assigner = mocks.NewMockAssigner(s.ctrl)
	s.respondants = mocks.NewMockRespondantLookup(s.ctrl)
	s.users = mocks.NewMockUserLookup(s.ctrl)
	s.published = &recorder{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	var err error
	s.service, err = New(s.store, s.assigner, s.respondants,
		WithUsers(s.users),
		WithPublisher(s.published),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
}

func (s *InterventionServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

var origin = geo.NewPoint(6.66, 46.83)

func draft(user domain.UserID) models.Draft {
	return models.Draft{Description: "  Cardiac arrest at the station  ", Location: origin, User: user}
}

func (s *InterventionServiceSuite) TestNew() {
	_, err := New(nil, s.assigner, s.respondants)
	s.Error(err)
	_, err = New(s.store, nil, s.respondants)
	s.Error(err)
	_, err = New(s.store, s.assigner, nil)
	s.Error(err)
}

func (s *InterventionServiceSuite) TestCreate() {
	s.Run("assigned", func() {
		s.SetupTest()
		now := time.Date(2024, 5, 2, 14, 30, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(context.Background(), now)
		user := domain.NewUserID()
		responder := &rmodels.Respondant{ID: domain.NewRespondantID(), FirstName: "Ada", LastName: "Lovelace", Location: origin, Radius: 500}

		s.assigner.EXPECT().Assign(gomock.Any(), origin).Return(assignment.Decision{
			Outcome:    assignment.OutcomeAssigned,
			Respondant: responder,
			Distance:   0,
			Candidates: 1,
		}, nil)
		var stored *models.Intervention
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, i *models.Intervention) error {
			stored = i
			return nil
		})

		i, err := s.service.Create(ctx, draft(user))
		s.Require().NoError(err)
		s.Same(stored, i)
		s.Equal("Cardiac arrest at the station", i.Description)
		s.True(i.Active)
		s.Equal(now, i.CreatedAt)
		s.Equal(user, i.User)
		s.Require().NotNil(i.Respondant)
		s.Equal(responder.ID, *i.Respondant)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.InterventionsCreated))

		events := s.published.Events()
		s.Require().Len(events, 1)
		s.Equal(notify.InterventionCreated("Cardiac arrest at the station", "Ada Lovelace"), events[0])
	})

	s.Run("unassigned", func() {
		s.SetupTest()
		s.assigner.EXPECT().Assign(gomock.Any(), gomock.Any()).Return(assignment.Decision{Outcome: assignment.OutcomeUnassigned}, nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		i, err := s.service.Create(context.Background(), draft(domain.NewUserID()))
		s.Require().NoError(err)
		s.Nil(i.Respondant)

		events := s.published.Events()
		s.Require().Len(events, 1)
		s.Contains(events[0].Message, "unassigned")
	})

	s.Run("invalid draft never reaches the engine", func() {
		s.SetupTest()
		_, err := s.service.Create(context.Background(), models.Draft{Location: origin})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.published.Events())
	})

	s.Run("assignment failure records nothing", func() {
		s.SetupTest()
		boom := dErrors.Wrap(errors.New("db down"), dErrors.CodeInternal, "failed to query respondant directory")
		s.assigner.EXPECT().Assign(gomock.Any(), gomock.Any()).Return(assignment.Decision{}, boom)

		_, err := s.service.Create(context.Background(), draft(domain.NewUserID()))
		s.ErrorIs(err, boom)
		s.Empty(s.published.Events())
		s.Equal(0.0, promtest.ToFloat64(s.metrics.InterventionsCreated))
	})

	s.Run("store failure is internal and not announced", func() {
		s.SetupTest()
		s.assigner.EXPECT().Assign(gomock.Any(), gomock.Any()).Return(assignment.Decision{Outcome: assignment.OutcomeUnassigned}, nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrUnavailable)

		_, err := s.service.Create(context.Background(), draft(domain.NewUserID()))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.Empty(s.published.Events())
	})
}

func (s *InterventionServiceSuite) TestGetAndRemove() {
	id := domain.NewInterventionID()

	s.Run("missing intervention is not found", func() {
		s.store.EXPECT().FindByID(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Get(context.Background(), id)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		s.store.EXPECT().Delete(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)
		_, err = s.service.Remove(context.Background(), id)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(0.0, promtest.ToFloat64(s.metrics.InterventionsRemoved))
	})

	s.Run("remove returns the deleted record", func() {
		removed := &models.Intervention{ID: id, Description: "x"}
		s.store.EXPECT().Delete(gomock.Any(), id).Return(removed, nil)
		got, err := s.service.Remove(context.Background(), id)
		s.Require().NoError(err)
		s.Same(removed, got)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.InterventionsRemoved))
	})
}

func (s *InterventionServiceSuite) TestBulkClear() {
	s.store.EXPECT().DeleteAll(gomock.Any()).Return(3, nil)
	n, err := s.service.BulkClear(context.Background())
	s.Require().NoError(err)
	s.Equal(3, n)
	s.Equal(3.0, promtest.ToFloat64(s.metrics.InterventionsRemoved))

	s.store.EXPECT().DeleteAll(gomock.Any()).Return(0, sentinel.ErrUnavailable)
	_, err = s.service.BulkClear(context.Background())
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *InterventionServiceSuite) TestListByRespondantPropagatesStoreErrors() {
	rid := domain.NewRespondantID()
	s.store.EXPECT().Scan(gomock.Any(), models.Filter{Respondant: &rid}, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.Filter, fn func(*models.Intervention) bool) error {
			fn(&models.Intervention{ID: domain.NewInterventionID()})
			return sentinel.ErrUnavailable
		})

	var seen int
	var lastErr error
	for i, err := range s.service.ListByRespondant(context.Background(), rid) {
		if err != nil {
			lastErr = err
			break
		}
		s.NotNil(i)
		seen++
	}
	s.Equal(1, seen)
	s.True(dErrors.HasCode(lastErr, dErrors.CodeInternal))
}

func (s *InterventionServiceSuite) TestResolve() {
	id := domain.NewInterventionID()
	rid := domain.NewRespondantID()
	uid := domain.NewUserID()

	s.Run("unassigned resolves to nil without a lookup", func() {
		s.store.EXPECT().FindByID(gomock.Any(), id).Return(&models.Intervention{ID: id, User: uid}, nil)
		r, err := s.service.ResolveRespondant(context.Background(), id)
		s.Require().NoError(err)
		s.Nil(r)
	})

	s.Run("assigned resolves through the directory", func() {
		want := &rmodels.Respondant{ID: rid, FirstName: "Ada", LastName: "Lovelace"}
		s.store.EXPECT().FindByID(gomock.Any(), id).Return(&models.Intervention{ID: id, User: uid, Respondant: &rid}, nil)
		s.respondants.EXPECT().Lookup(gomock.Any(), rid).Return(want, nil)
		r, err := s.service.ResolveRespondant(context.Background(), id)
		s.Require().NoError(err)
		s.Same(want, r)
	})

	s.Run("reporter", func() {
		want := &umodels.User{ID: uid, FirstName: "Jane", LastName: "Doe"}
		s.store.EXPECT().FindByID(gomock.Any(), id).Return(&models.Intervention{ID: id, User: uid}, nil)
		s.users.EXPECT().Lookup(gomock.Any(), uid).Return(want, nil)
		u, err := s.service.ResolveReporter(context.Background(), id)
		s.Require().NoError(err)
		s.Same(want, u)
	})
}

// Runs the ledger against the in-memory stores and the real engine.
func TestLedgerAgainstInMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	directory, err := rservice.New(rstore.NewInMemory())
	require.NoError(t, err)
	engine, err := assignment.New(directory)
	require.NoError(t, err)
	svc, err := New(istore.NewInMemory(), engine, directory)
	require.NoError(t, err)

	ada, err := directory.Register(ctx, rmodels.Profile{
		FirstName: "Ada", LastName: "Lovelace", Phone: "+41 79 000 00 00",
		Location: origin, Radius: 1000, CertificateValidity: true,
	})
	require.NoError(t, err)

	user := domain.NewUserID()
	first, err := svc.Create(ctx, draft(user))
	require.NoError(t, err)
	require.NotNil(t, first.Respondant)
	assert.Equal(t, ada.ID, *first.Respondant)

	far := models.Draft{Description: "Lost hiker", Location: geo.NewPoint(7.5, 46.0), User: user}
	second, err := svc.Create(ctx, far)
	require.NoError(t, err)
	assert.Nil(t, second.Respondant)

	t.Run("iterator can be ranged twice", func(t *testing.T) {
		seq := svc.ListByRespondant(ctx, ada.ID)
		a, err := Collect(seq)
		require.NoError(t, err)
		b, err := Collect(seq)
		require.NoError(t, err)
		require.Len(t, a, 1)
		assert.Equal(t, a, b)
		assert.Equal(t, first.ID, a[0].ID)
	})

	t.Run("by user keeps creation order", func(t *testing.T) {
		got, err := Collect(svc.ListByUser(ctx, user))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, first.ID, got[0].ID)
		assert.Equal(t, second.ID, got[1].ID)
	})

	t.Run("early break stops the scan", func(t *testing.T) {
		var n int
		for range svc.All(ctx) {
			n++
			break
		}
		assert.Equal(t, 1, n)
	})

	t.Run("deleted respondant resolves to nil", func(t *testing.T) {
		_, err := directory.Delete(ctx, ada.ID)
		require.NoError(t, err)

		r, err := svc.ResolveRespondant(ctx, first.ID)
		require.NoError(t, err)
		assert.Nil(t, r)

		kept, err := svc.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, kept.AssignedTo(ada.ID))
	})

	t.Run("bulk clear empties the ledger", func(t *testing.T) {
		n, err := svc.BulkClear(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		all, err := svc.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
