package user

import (
	"database/sql"
	"log/slog"

	"rescue/internal/user/handler"
	"rescue/internal/user/service"
	"rescue/internal/user/store"
)

// Service manages accounts and login.
type Service = service.Service

// Handler wires HTTP endpoints to the user service.
type Handler = handler.Handler

type Store = store.Store

// NewStore returns the Postgres store when db is set, the in-memory one otherwise.
func NewStore(db *sql.DB) Store {
	if db != nil {
		return store.NewPostgres(db)
	}
	return store.NewInMemory()
}

func NewService(s Store, tokens service.TokenIssuer, opts ...service.Option) (*Service, error) {
	return service.New(s, tokens, opts...)
}

func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
