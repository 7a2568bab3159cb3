package respondant

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"rescue/internal/respondant/handler"
	"rescue/internal/respondant/service"
	"rescue/internal/respondant/store"
)

// Service is the respondant directory.
type Service = service.Service

// Handler wires HTTP endpoints to the directory.
type Handler = handler.Handler

// Store is the persistence contract shared by every backend.
type Store = store.Store

// NewStore picks the record store: PostGIS when db is set, the in-memory
// vp-tree otherwise. A non-nil geo client layers a Redis GEO index on top.
func NewStore(db *sql.DB, geo *redis.Client, geoKey string, logger *slog.Logger) Store {
	var s Store
	if db != nil {
		s = store.NewPostgres(db)
	} else {
		s = store.NewInMemory()
	}
	if geo != nil {
		s = store.NewGeoIndexed(s, geo, geoKey, logger)
	}
	return s
}

func NewService(s Store, opts ...service.Option) (*Service, error) {
	return service.New(s, opts...)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
