package httpserver

import (
	"net/http"
	"time"

	"rescue/internal/platform/config"
)

// New builds the HTTP server. Per-request deadlines are applied by the router's
// timeout middleware; notification websockets must outlive them, so no
// read/write timeouts are set here.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
