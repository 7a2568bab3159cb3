package service

import (
	"context"
	"errors"
	"log/slog"

	"rescue/internal/notify"
	"rescue/internal/platform/metrics"
	"rescue/internal/respondant/models"
	"rescue/pkg/domain"
	dErrors "rescue/pkg/domain-errors"
	"rescue/pkg/geo"
	"rescue/pkg/platform/sentinel"
	"rescue/pkg/requestcontext"
)

// Store persists respondants and answers nearest queries.
type Store interface {
	Create(ctx context.Context, r *models.Respondant) error
	FindByID(ctx context.Context, id domain.RespondantID) (*models.Respondant, error)
	List(ctx context.Context) ([]*models.Respondant, error)
	Count(ctx context.Context) (int, error)
	Execute(ctx context.Context, id domain.RespondantID, mutate func(*models.Respondant) error) (*models.Respondant, error)
	Delete(ctx context.Context, id domain.RespondantID) (*models.Respondant, error)
	NearestCandidates(ctx context.Context, p geo.Point, maxDistance float64) ([]models.Candidate, error)
}

// Publisher receives population change events.
type Publisher interface {
	Publish(ctx context.Context, e notify.Event)
}

// Service is the respondant directory.
type Service struct {
	store     Store
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("respondant store is required")
	}
	s := &Service{
		store:     store,
		publisher: notify.Discard{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register validates the profile and adds a new respondant.
func (s *Service) Register(ctx context.Context, p models.Profile) (*models.Respondant, error) {
	r, err := models.NewRespondant(domain.NewRespondantID(), p, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, wrapStoreErr(err, "failed to register respondant")
	}

	s.logger.InfoContext(ctx, "respondant registered",
		"respondant_id", r.ID.String(),
		"radius_m", r.Radius,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.announcePopulation(ctx)
	return r, nil
}

// Update replaces the profile of an existing respondant.
func (s *Service) Update(ctx context.Context, id domain.RespondantID, p models.Profile) (*models.Respondant, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r, err := s.store.Execute(ctx, id, func(r *models.Respondant) error {
		return r.ApplyProfile(p)
	})
	if err != nil {
		return nil, wrapStoreErr(err, "failed to update respondant")
	}
	return r, nil
}

// Delete removes a respondant. Interventions that reference it are left
// untouched.
func (s *Service) Delete(ctx context.Context, id domain.RespondantID) (*models.Respondant, error) {
	r, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to delete respondant")
	}
	s.logger.InfoContext(ctx, "respondant deleted",
		"respondant_id", id.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.announcePopulation(ctx)
	return r, nil
}

func (s *Service) Get(ctx context.Context, id domain.RespondantID) (*models.Respondant, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load respondant")
	}
	return r, nil
}

// Lookup is Get without error translation: a missing respondant yields
// (nil, nil). Used to resolve references that may dangle.
func (s *Service) Lookup(ctx context.Context, id domain.RespondantID) (*models.Respondant, error) {
	r, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load respondant")
	}
	return r, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Respondant, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list respondants")
	}
	return all, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, wrapStoreErr(err, "failed to count respondants")
	}
	return n, nil
}

// NearestCandidates returns respondants within maxDistance meters of p,
// closest first. Store errors are returned unchanged so callers can tell an
// empty directory (sentinel.ErrNotFound) from an unreachable one.
func (s *Service) NearestCandidates(ctx context.Context, p geo.Point, maxDistance float64) ([]models.Candidate, error) {
	return s.store.NearestCandidates(ctx, p, maxDistance)
}

func (s *Service) announcePopulation(ctx context.Context) {
	n, err := s.store.Count(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to count respondants", "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.RespondantsRegistered.Set(float64(n))
	}
	s.publisher.Publish(ctx, notify.RespondantCount(n))
}

func wrapStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "respondant not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "respondant already exists")
	}
	if _, ok := dErrors.From(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
