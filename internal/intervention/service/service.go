// Package service is the intervention ledger. Creating an intervention runs
// the assignment engine, persists the outcome and announces it.
package service

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rescue/internal/assignment"
	"rescue/internal/intervention/models"
	"rescue/internal/notify"
	"rescue/internal/platform/metrics"
	rmodels "rescue/internal/respondant/models"
	umodels "rescue/internal/user/models"
	"rescue/pkg/domain"
	dErrors "rescue/pkg/domain-errors"
	"rescue/pkg/geo"
	"rescue/pkg/platform/sentinel"
	"rescue/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, i *models.Intervention) error
	FindByID(ctx context.Context, id domain.InterventionID) (*models.Intervention, error)
	Scan(ctx context.Context, f models.Filter, fn func(*models.Intervention) bool) error
	Delete(ctx context.Context, id domain.InterventionID) (*models.Intervention, error)
	DeleteAll(ctx context.Context) (int, error)
}

// Assigner picks the respondant for a location.
type Assigner interface {
	Assign(ctx context.Context, p geo.Point) (assignment.Decision, error)
}

// RespondantLookup resolves respondant references; (nil, nil) means the
// respondant no longer exists.
type RespondantLookup interface {
	Lookup(ctx context.Context, id domain.RespondantID) (*rmodels.Respondant, error)
}

// UserLookup resolves reporter references; (nil, nil) means the user no
// longer exists.
type UserLookup interface {
	Lookup(ctx context.Context, id domain.UserID) (*umodels.User, error)
}

type Service struct {
	store       Store
	assigner    Assigner
	respondants RespondantLookup
	users       UserLookup
	publisher   notify.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

type Option func(*Service)

func WithUsers(u UserLookup) Option {
	return func(s *Service) { s.users = u }
}

func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(store Store, assigner Assigner, respondants RespondantLookup, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("intervention store is required")
	}
	if assigner == nil {
		return nil, errors.New("assigner is required")
	}
	if respondants == nil {
		return nil, errors.New("respondant lookup is required")
	}
	s := &Service{
		store:       store,
		assigner:    assigner,
		respondants: respondants,
		publisher:   notify.Discard{},
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer("rescue/intervention"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create validates d, assigns a respondant and records the intervention.
// Nothing is persisted or announced when any step fails.
func (s *Service) Create(ctx context.Context, d models.Draft) (*models.Intervention, error) {
	ctx, span := s.tracer.Start(ctx, "intervention.Create")
	defer span.End()

	if err := d.Validate(); err != nil {
		return nil, err
	}

	decision, err := s.assigner.Assign(ctx, d.Location)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment failed")
		return nil, err
	}

	var (
		assignee     *domain.RespondantID
		assigneeName string
	)
	if decision.Assigned() {
		id := decision.Respondant.ID
		assignee = &id
		assigneeName = decision.Respondant.FullName()
	}

	i := models.New(domain.NewInterventionID(), d, assignee, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, i); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, wrapStoreErr(err, "failed to record intervention")
	}
	span.SetAttributes(
		attribute.String("intervention.id", i.ID.String()),
		attribute.String("assignment.outcome", string(decision.Outcome)),
	)

	if s.metrics != nil {
		s.metrics.InterventionsCreated.Inc()
	}
	s.logger.InfoContext(ctx, "intervention recorded",
		"intervention_id", i.ID.String(),
		"outcome", string(decision.Outcome),
		"request_id", requestcontext.RequestID(ctx),
	)
	s.publisher.Publish(ctx, notify.InterventionCreated(i.Description, assigneeName))
	return i, nil
}

func (s *Service) Get(ctx context.Context, id domain.InterventionID) (*models.Intervention, error) {
	i, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load intervention")
	}
	return i, nil
}

// Remove deletes one intervention and returns it.
func (s *Service) Remove(ctx context.Context, id domain.InterventionID) (*models.Intervention, error) {
	i, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to remove intervention")
	}
	if s.metrics != nil {
		s.metrics.InterventionsRemoved.Inc()
	}
	s.logger.InfoContext(ctx, "intervention removed",
		"intervention_id", id.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return i, nil
}

// BulkClear drops every intervention and reports how many were removed.
func (s *Service) BulkClear(ctx context.Context) (int, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, wrapStoreErr(err, "failed to clear interventions")
	}
	if s.metrics != nil {
		s.metrics.InterventionsRemoved.Add(float64(n))
	}
	s.logger.WarnContext(ctx, "interventions cleared",
		"removed", n,
		"request_id", requestcontext.RequestID(ctx),
	)
	return n, nil
}

// All iterates every intervention in storage order.
func (s *Service) All(ctx context.Context) iter.Seq2[*models.Intervention, error] {
	return s.scan(ctx, models.Filter{})
}

// ListByRespondant iterates the interventions assigned to id. Each range
// queries the store again.
func (s *Service) ListByRespondant(ctx context.Context, id domain.RespondantID) iter.Seq2[*models.Intervention, error] {
	return s.scan(ctx, models.Filter{Respondant: &id})
}

// ListByUser iterates the interventions reported by id.
func (s *Service) ListByUser(ctx context.Context, id domain.UserID) iter.Seq2[*models.Intervention, error] {
	return s.scan(ctx, models.Filter{User: &id})
}

// List collects All.
func (s *Service) List(ctx context.Context) ([]*models.Intervention, error) {
	return Collect(s.All(ctx))
}

func (s *Service) scan(ctx context.Context, f models.Filter) iter.Seq2[*models.Intervention, error] {
	return func(yield func(*models.Intervention, error) bool) {
		stopped := false
		err := s.store.Scan(ctx, f, func(i *models.Intervention) bool {
			if !yield(i, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(nil, wrapStoreErr(err, "failed to list interventions"))
		}
	}
}

// ResolveRespondant returns the respondant assigned to intervention id, or
// nil when it is unassigned or the respondant was deleted.
func (s *Service) ResolveRespondant(ctx context.Context, id domain.InterventionID) (*rmodels.Respondant, error) {
	i, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if i.Respondant == nil {
		return nil, nil
	}
	return s.respondants.Lookup(ctx, *i.Respondant)
}

// ResolveReporter returns the user who reported intervention id, or nil when
// the account no longer exists.
func (s *Service) ResolveReporter(ctx context.Context, id domain.InterventionID) (*umodels.User, error) {
	i, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.users == nil {
		return nil, nil
	}
	return s.users.Lookup(ctx, i.User)
}

// Collect drains seq, stopping at the first error.
func Collect(seq iter.Seq2[*models.Intervention, error]) ([]*models.Intervention, error) {
	out := []*models.Intervention{}
	for i, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

func wrapStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "intervention not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "intervention already exists")
	}
	if _, ok := dErrors.From(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
