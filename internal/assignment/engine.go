// Package assignment selects the respondant responsible for a new
// intervention.
//
// A respondant is eligible when the intervention point lies inside its
// service circle: great-circle distance <= radius. How close a respondant is
// does not make it eligible. Among eligible respondants the one with the
// smallest radius wins, then the closer one, then the one the directory
// returned first.
package assignment

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rescue/internal/platform/metrics"
	"rescue/internal/respondant/models"
	dErrors "rescue/pkg/domain-errors"
	"rescue/pkg/geo"
	"rescue/pkg/platform/sentinel"
)

// DefaultMaxSearchDistance bounds the nearest query, in meters.
const DefaultMaxSearchDistance = 10000.0

// Outcome of one assignment.
type Outcome string

const (
	OutcomeAssigned   Outcome = metrics.OutcomeAssigned
	OutcomeUnassigned Outcome = metrics.OutcomeUnassigned
)

// Directory answers nearest-candidate queries. sentinel.ErrNotFound means
// the directory is empty.
type Directory interface {
	NearestCandidates(ctx context.Context, p geo.Point, maxDistance float64) ([]models.Candidate, error)
}

// Decision is the ephemeral result of Assign. Respondant is nil when the
// outcome is unassigned.
type Decision struct {
	Outcome    Outcome
	Respondant *models.Respondant
	Distance   float64
	Candidates int
}

// Assigned reports whether a respondant was chosen.
func (d Decision) Assigned() bool {
	return d.Outcome == OutcomeAssigned && d.Respondant != nil
}

type Engine struct {
	directory   Directory
	maxDistance float64
	metrics     *metrics.Metrics
	logger      *slog.Logger
	tracer      trace.Tracer
}

type Option func(*Engine)

// WithMaxSearchDistance overrides DefaultMaxSearchDistance. Non-positive
// values are ignored.
func WithMaxSearchDistance(m float64) Option {
	return func(e *Engine) {
		if m > 0 {
			e.maxDistance = m
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func New(directory Directory, opts ...Option) (*Engine, error) {
	if directory == nil {
		return nil, errors.New("respondant directory is required")
	}
	e := &Engine{
		directory:   directory,
		maxDistance: DefaultMaxSearchDistance,
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer("rescue/assignment"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Assign picks the respondant for an intervention at p. An empty directory
// or a point nobody covers yields an unassigned decision and no error.
func (e *Engine) Assign(ctx context.Context, p geo.Point) (Decision, error) {
	ctx, span := e.tracer.Start(ctx, "assignment.Assign",
		trace.WithAttributes(
			attribute.Float64("point.lon", p.Lon()),
			attribute.Float64("point.lat", p.Lat()),
			attribute.Float64("max_search_distance_m", e.maxDistance),
		),
	)
	defer span.End()

	candidates, err := e.directory.NearestCandidates(ctx, p, e.maxDistance)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "directory query failed")
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query respondant directory")
	}

	d := Select(candidates, p)
	if e.metrics != nil {
		e.metrics.ObserveAssignment(string(d.Outcome), d.Candidates)
	}
	span.SetAttributes(
		attribute.String("outcome", string(d.Outcome)),
		attribute.Int("candidates", d.Candidates),
	)

	if d.Assigned() {
		e.logger.DebugContext(ctx, "intervention assigned",
			"respondant_id", d.Respondant.ID.String(),
			"radius_m", d.Respondant.Radius,
			"distance_m", d.Distance,
			"candidates", d.Candidates,
		)
	} else {
		e.logger.DebugContext(ctx, "no respondant covers intervention",
			"point", p.String(),
			"candidates", d.Candidates,
		)
	}
	return d, nil
}

// Select applies eligibility and the tie-break to candidates in directory
// order. Distances are recomputed from the locations so the decision does
// not depend on how a backend measured them.
func Select(candidates []models.Candidate, p geo.Point) Decision {
	d := Decision{Outcome: OutcomeUnassigned, Candidates: len(candidates)}
	for _, c := range candidates {
		r := c.Respondant
		if r == nil {
			continue
		}
		dist := geo.Distance(r.Location, p)
		if dist > r.Radius {
			continue
		}
		if d.Respondant == nil || better(r.Radius, dist, d.Respondant.Radius, d.Distance) {
			d.Outcome = OutcomeAssigned
			d.Respondant = r
			d.Distance = dist
		}
	}
	return d
}

// better reports whether (radius, dist) strictly beats the current pick.
// Equal pairs keep the earlier candidate.
func better(radius, dist, curRadius, curDist float64) bool {
	if radius != curRadius {
		return radius < curRadius
	}
	return dist < curDist
}
