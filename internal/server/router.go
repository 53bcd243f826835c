// Package server implements the HTTP server and routing logic.
package server

import (
	"fmt"
	"net/http"

	"github.com/maruel/localcrm/frontend"
	"github.com/maruel/localcrm/internal/server/handlers"
	"github.com/maruel/localcrm/internal/server/ratelimit"
	"github.com/maruel/localcrm/internal/storage"
)

// Config holds the router settings.
type Config struct {
	// Version is reported by the health check.
	Version string
	// MaxRequestBodyBytes limits JSON request bodies. 0 means unlimited.
	MaxRequestBodyBytes int64
	// Limiter limits write requests per client IP. nil disables limiting.
	Limiter *ratelimit.Limiter
}

// NewRouter creates and configures the HTTP router.
// Serves the JSON API at /api/v1/*, the HTML pages at /customers and the static
// assets at /static/.
func NewRouter(svc *storage.CustomerService, cfg *Config) (http.Handler, error) {
	tmpl, err := frontend.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	mux := &http.ServeMux{}
	maxBody := cfg.MaxRequestBodyBytes

	hh := handlers.NewHealthHandler(svc, cfg.Version)
	ch := handlers.NewCustomerHandler(svc)
	ph := handlers.NewPageHandler(svc, tmpl)

	// JSON API
	mux.Handle("GET /api/v1/health", Wrap(hh.Health, maxBody))
	mux.Handle("GET /api/v1/customers", Wrap(ch.List, maxBody))
	mux.Handle("POST /api/v1/customers", Wrap(ch.Create, maxBody))
	mux.Handle("GET /api/v1/customers/next-id", Wrap(ch.NextID, maxBody))
	mux.Handle("GET /api/v1/customers/schema", Wrap(ch.Schema, maxBody))
	mux.Handle("GET /api/v1/customers/{id}", Wrap(ch.Get, maxBody))
	mux.Handle("PUT /api/v1/customers/{id}", Wrap(ch.Put, maxBody))
	mux.Handle("GET /api/v1/history", Wrap(ch.History, maxBody))

	// HTML pages
	mux.HandleFunc("GET /{$}", ph.Index)
	mux.HandleFunc("GET /customers", ph.List)
	mux.HandleFunc("GET /customers/new", ph.New)
	mux.HandleFunc("POST /customers", ph.Create)
	mux.HandleFunc("GET /customers/{id}/edit", ph.Edit)
	mux.HandleFunc("POST /customers/{id}/edit", ph.Update)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(frontend.Static())))

	var h http.Handler = mux
	h = ratelimit.Middleware(cfg.Limiter, rejectRateLimited, h)
	return requestMetadata(h), nil
}
