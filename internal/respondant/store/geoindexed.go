package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"rescue/internal/respondant/models"
	"rescue/pkg/domain"
	"rescue/pkg/geo"
	"rescue/pkg/platform/circuit"
	"rescue/pkg/platform/sentinel"
)

// geoClient is the subset of *redis.Client used by GeoIndexed.
type geoClient interface {
	GeoAdd(ctx context.Context, key string, geoLocation ...*redis.GeoLocation) *redis.IntCmd
	GeoSearchLocation(ctx context.Context, key string, q *redis.GeoSearchLocationQuery) *redis.GeoSearchLocationCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Rename(ctx context.Context, key, newkey string) *redis.StatusCmd
}

// maxGeoLatitude is the Web Mercator bound Redis GEO accepts.
const maxGeoLatitude = 85.05112878

// GeoIndexed mirrors respondant locations into a Redis GEO set and answers
// nearest queries from it. Records still live in the wrapped store. While
// Redis is failing, queries fall back to the wrapped store's own index.
type GeoIndexed struct {
	Store
	client  geoClient
	key     string
	breaker *circuit.Breaker
	logger  *slog.Logger
	stale   atomic.Bool
}

func NewGeoIndexed(inner Store, client geoClient, key string, logger *slog.Logger) *GeoIndexed {
	return &GeoIndexed{
		Store:   inner,
		client:  client,
		key:     key,
		logger:  logger,
		breaker: circuit.New("redis-geo", circuit.WithFailureThreshold(3), circuit.WithCooldown(10*time.Second)),
	}
}

func (g *GeoIndexed) Create(ctx context.Context, r *models.Respondant) error {
	if err := g.Store.Create(ctx, r); err != nil {
		return err
	}
	g.index(ctx, r)
	return nil
}

func (g *GeoIndexed) Execute(ctx context.Context, id domain.RespondantID, mutate func(*models.Respondant) error) (*models.Respondant, error) {
	r, err := g.Store.Execute(ctx, id, mutate)
	if err != nil {
		return nil, err
	}
	g.index(ctx, r)
	return r, nil
}

func (g *GeoIndexed) Delete(ctx context.Context, id domain.RespondantID) (*models.Respondant, error) {
	r, err := g.Store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := g.client.ZRem(ctx, g.key, id.String()).Err(); err != nil {
		g.markStale(ctx, err)
	}
	return r, nil
}

// Sync rebuilds the GEO set from the wrapped store. The new set is built
// under a temporary key and renamed into place.
func (g *GeoIndexed) Sync(ctx context.Context) error {
	all, err := g.Store.List(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		if err := g.client.Del(ctx, g.key).Err(); err != nil {
			return fmt.Errorf("clear geo index: %w", err)
		}
		g.stale.Store(false)
		return nil
	}

	tmp := g.key + ":rebuild"
	locs := make([]*redis.GeoLocation, 0, len(all))
	for _, r := range all {
		if indexable(r.Location) {
			locs = append(locs, geoLocation(r))
		}
	}
	if len(locs) == 0 {
		if err := g.client.Del(ctx, g.key).Err(); err != nil {
			return fmt.Errorf("clear geo index: %w", err)
		}
		g.stale.Store(false)
		return nil
	}
	if err := g.client.GeoAdd(ctx, tmp, locs...).Err(); err != nil {
		return fmt.Errorf("rebuild geo index: %w", err)
	}
	if err := g.client.Rename(ctx, tmp, g.key).Err(); err != nil {
		return fmt.Errorf("swap geo index: %w", err)
	}
	g.stale.Store(false)
	return nil
}

// NearestCandidates runs GEOSEARCH BYRADIUS ASC WITHDIST and loads the
// matching records from the wrapped store.
func (g *GeoIndexed) NearestCandidates(ctx context.Context, p geo.Point, maxDistance float64) ([]models.Candidate, error) {
	if !g.breaker.Allow() || reachesPole(p, maxDistance) {
		return g.Store.NearestCandidates(ctx, p, maxDistance)
	}
	if g.stale.Load() {
		if err := g.Sync(ctx); err != nil {
			return g.fallback(ctx, p, maxDistance, err)
		}
	}

	hits, err := g.client.GeoSearchLocation(ctx, g.key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lon(),
			Latitude:   p.Lat(),
			Radius:     maxDistance,
			RadiusUnit: "m",
			Sort:       "ASC",
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return g.fallback(ctx, p, maxDistance, err)
	}
	if len(hits) == 0 {
		n, err := g.client.ZCard(ctx, g.key).Result()
		if err != nil {
			return g.fallback(ctx, p, maxDistance, err)
		}
		g.recordSuccess(ctx)
		if n == 0 {
			return nil, sentinel.ErrNotFound
		}
		return []models.Candidate{}, nil
	}
	g.recordSuccess(ctx)

	ids := make([]domain.RespondantID, 0, len(hits))
	for _, h := range hits {
		id, err := domain.ParseRespondantID(h.Name)
		if err != nil {
			g.logger.WarnContext(ctx, "skipping malformed geo index member", "member", h.Name)
			continue
		}
		ids = append(ids, id)
	}
	records, err := g.Store.FindMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.Candidate, 0, len(records))
	for _, r := range records {
		out = append(out, models.Candidate{Respondant: r, Distance: geo.Distance(r.Location, p)})
	}
	sortCandidates(out)
	return out, nil
}

func (g *GeoIndexed) index(ctx context.Context, r *models.Respondant) {
	var err error
	if indexable(r.Location) {
		err = g.client.GeoAdd(ctx, g.key, geoLocation(r)).Err()
	} else {
		// it may have moved out of the indexable band
		err = g.client.ZRem(ctx, g.key, r.ID.String()).Err()
	}
	if err != nil {
		g.markStale(ctx, err)
	}
}

func (g *GeoIndexed) markStale(ctx context.Context, err error) {
	g.stale.Store(true)
	g.recordFailure(ctx, err)
}

func (g *GeoIndexed) fallback(ctx context.Context, p geo.Point, maxDistance float64, cause error) ([]models.Candidate, error) {
	g.recordFailure(ctx, cause)
	return g.Store.NearestCandidates(ctx, p, maxDistance)
}

func (g *GeoIndexed) recordFailure(ctx context.Context, err error) {
	_, change := g.breaker.RecordFailure()
	g.logger.WarnContext(ctx, "redis geo index failure",
		"error", err,
		"breaker", g.breaker.Name(),
		"state", g.breaker.State().String(),
	)
	if change.Opened {
		g.logger.ErrorContext(ctx, "redis geo index disabled, using record store index",
			"key", g.key,
		)
	}
}

func (g *GeoIndexed) recordSuccess(ctx context.Context) {
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "redis geo index restored", "key", g.key)
	}
}

func geoLocation(r *models.Respondant) *redis.GeoLocation {
	return &redis.GeoLocation{
		Name:      r.ID.String(),
		Longitude: r.Location.Lon(),
		Latitude:  r.Location.Lat(),
	}
}

func indexable(p geo.Point) bool {
	return math.Abs(p.Lat()) <= maxGeoLatitude
}

// reachesPole reports whether a search circle leaves the band Redis can
// index. Such queries go to the wrapped store, which sees every record.
func reachesPole(p geo.Point, maxDistance float64) bool {
	degrees := maxDistance / (geo.EarthRadiusMeters * math.Pi / 180)
	return math.Abs(p.Lat())+degrees > maxGeoLatitude
}
