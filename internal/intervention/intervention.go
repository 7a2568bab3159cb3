package intervention

import (
	"database/sql"
	"log/slog"

	"rescue/internal/intervention/handler"
	"rescue/internal/intervention/service"
	"rescue/internal/intervention/store"
)

// Service is the intervention ledger.
type Service = service.Service

type Handler = handler.Handler

type Store = store.Store

// NewStore returns the Postgres ledger when db is set, the in-memory one
// otherwise.
func NewStore(db *sql.DB) Store {
	if db != nil {
		return store.NewPostgres(db)
	}
	return store.NewInMemory()
}

func NewService(s Store, assigner service.Assigner, respondants service.RespondantLookup, opts ...service.Option) (*Service, error) {
	return service.New(s, assigner, respondants, opts...)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
