// Package app assembles the dispatch service from configuration: storage
// backends, services, notification sinks and the HTTP server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"rescue/internal/assignment"
	httpapi "rescue/internal/http"
	"rescue/internal/intervention"
	interventionservice "rescue/internal/intervention/service"
	jwttoken "rescue/internal/jwt_token"
	"rescue/internal/notify"
	"rescue/internal/platform/config"
	"rescue/internal/platform/httpserver"
	"rescue/internal/platform/metrics"
	"rescue/internal/platform/postgres"
	platformredis "rescue/internal/platform/redis"
	ratelimitmw "rescue/internal/ratelimit/middleware"
	"rescue/internal/ratelimit/models"
	"rescue/internal/ratelimit/store/bucket"
	"rescue/internal/respondant"
	respondantservice "rescue/internal/respondant/service"
	"rescue/internal/user"
	userservice "rescue/internal/user/service"
)

// App owns every long-lived resource. Close releases them.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	db    *sql.DB
	redis *platformredis.Client
	hub     *notify.Hub
	sinks   []closer
	limiter *ratelimitmw.Middleware

	Tokens        *jwttoken.JWTService
	Users         *user.Service
	Respondants   *respondant.Service
	Interventions *intervention.Service
}

type closer interface{ Close() }

type syncer interface {
	Sync(ctx context.Context) error
}

// New connects the configured backends and builds the services. Notification
// sinks are connected only when withSinks is set; CLI commands skip them.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, withSinks bool) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  metrics.New(reg),
		Tokens:   jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.TokenTTL),
	}
	if err := a.connect(ctx, withSinks); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context, withSinks bool) error {
	if a.cfg.Storage.Driver == "postgres" {
		db, err := postgres.Open(ctx, a.cfg.Postgres)
		if err != nil {
			return err
		}
		a.db = db
		a.logger.InfoContext(ctx, "postgres connected")
	}
	if a.needsRedis() {
		rc, err := platformredis.New(ctx, a.cfg.Redis)
		if err != nil {
			return err
		}
		a.redis = rc
		a.logger.InfoContext(ctx, "redis connected")
	}

	opts := []notify.Option{notify.WithMetrics(a.metrics)}
	if withSinks {
		kafka, err := notify.NewKafkaSink(ctx, a.cfg.Notify.Kafka)
		if err != nil {
			return err
		}
		if kafka != nil {
			a.sinks = append(a.sinks, kafka)
			opts = append(opts, notify.WithSink(kafka))
			a.logger.InfoContext(ctx, "kafka notifications enabled", "topic", a.cfg.Notify.Kafka.Topic)
		}
		mqtt, err := notify.NewMQTTSink(a.cfg.Notify.MQTT, a.logger)
		if err != nil {
			return err
		}
		if mqtt != nil {
			a.sinks = append(a.sinks, mqtt)
			opts = append(opts, notify.WithSink(mqtt))
			a.logger.InfoContext(ctx, "mqtt notifications enabled", "topic", a.cfg.Notify.MQTT.Topic)
		}
	}
	a.hub = notify.NewHub(a.cfg.Notify.QueueSize, a.logger, opts...)
	return nil
}

func (a *App) needsRedis() bool {
	rl := a.cfg.RateLimit
	return a.cfg.GeoIndex.Backend == "redis" || (rl.Enabled && rl.Backend == "redis")
}

func (a *App) build(ctx context.Context) error {
	var geoClient *goredis.Client
	if a.cfg.GeoIndex.Backend == "redis" {
		geoClient = a.redis.Client
	}
	respondantStore := respondant.NewStore(a.db, geoClient, a.cfg.GeoIndex.Key, a.logger)
	if s, ok := respondantStore.(syncer); ok {
		if err := s.Sync(ctx); err != nil {
			a.logger.WarnContext(ctx, "geo index sync failed, queries fall back to the store", "error", err)
		}
	}

	var err error
	a.Respondants, err = respondant.NewService(respondantStore,
		respondantservice.WithPublisher(a.hub),
		respondantservice.WithMetrics(a.metrics),
		respondantservice.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	a.Users, err = user.NewService(user.NewStore(a.db), a.Tokens,
		userservice.WithBcryptCost(a.cfg.Auth.BcryptCost),
		userservice.WithMetrics(a.metrics),
		userservice.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	engine, err := assignment.New(a.Respondants,
		assignment.WithMaxSearchDistance(a.cfg.Assignment.MaxSearchDistanceM),
		assignment.WithMetrics(a.metrics),
		assignment.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	a.Interventions, err = intervention.NewService(intervention.NewStore(a.db), engine, a.Respondants,
		interventionservice.WithUsers(a.Users),
		interventionservice.WithPublisher(a.hub),
		interventionservice.WithMetrics(a.metrics),
		interventionservice.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	a.limiter = a.buildLimiter()
	return nil
}

// buildLimiter returns nil when rate limiting is disabled.
func (a *App) buildLimiter() *ratelimitmw.Middleware {
	rl := a.cfg.RateLimit
	if !rl.Enabled {
		return nil
	}
	var store ratelimitmw.BucketStore = bucket.NewInMemoryBucketStore()
	if rl.Backend == "redis" {
		store = bucket.NewRedisBucketStore(a.redis.Client, rl.Prefix)
	}
	limits := map[models.EndpointClass]models.Limit{
		models.ClassAuth:  {Requests: rl.Auth.Requests, Window: rl.Auth.Window},
		models.ClassWrite: {Requests: rl.Write.Requests, Window: rl.Write.Window},
		models.ClassRead:  {Requests: rl.Read.Requests, Window: rl.Read.Window},
	}
	a.logger.Info("rate limiting enabled", "backend", rl.Backend)
	return ratelimitmw.New(store, limits, a.logger, ratelimitmw.WithMetrics(a.metrics))
}

// Handler returns the fully wired router.
func (a *App) Handler() http.Handler {
	health := map[string]httpapi.HealthCheck{}
	if a.db != nil {
		health["postgres"] = a.db.PingContext
	}
	if a.redis != nil {
		health["redis"] = a.redis.Health
	}
	return httpapi.NewRouter(httpapi.Deps{
		Logger:         a.logger,
		Metrics:        a.metrics,
		Gatherer:       a.registry,
		Tokens:         jwttoken.NewJWTServiceAdapter(a.Tokens),
		AdminToken:     a.cfg.Admin.Token,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		DocsDir:        a.cfg.Server.DocsDir,
		Limiter:        a.limiter,
		Users:          user.NewHandler(a.Users, a.logger),
		Respondants:    respondant.NewHandler(a.Respondants, a.logger),
		Interventions:  intervention.NewHandler(a.Interventions, a.logger),
		Notifications:  notify.NewWebsocketHandler(a.hub, a.logger),
		Health:         health,
	})
}

// Run serves HTTP and drains notifications until ctx is cancelled, then shuts
// the server down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	srv := httpserver.New(a.cfg.Server, a.Handler())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.hub.Run(gctx)
	})
	g.Go(func() error {
		a.logger.InfoContext(gctx, "listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.logger.InfoContext(shutdownCtx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.sinks) - 1; i >= 0; i-- {
		a.sinks[i].Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("postgres close failed", "error", err)
		}
	}
}
