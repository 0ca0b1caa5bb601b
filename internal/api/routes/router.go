package routes

import (
	"net/http"

	"github.com/openimis/openimis-be-medical/internal/api/handlers"
	"github.com/openimis/openimis-be-medical/internal/api/loaders"
	"github.com/openimis/openimis-be-medical/internal/api/middleware"
	"github.com/openimis/openimis-be-medical/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	catalogHandler *handlers.CatalogHandler
	searchHandler  *handlers.SearchHandler
	healthHandler  *handlers.HealthHandler

	auth           *middleware.Authenticator
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router. searchHandler may be nil when no search
// index is configured.
func NewRouter(
	catalogHandler *handlers.CatalogHandler,
	searchHandler *handlers.SearchHandler,
	auth *middleware.Authenticator,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		catalogHandler: catalogHandler,
		searchHandler:  searchHandler,
		healthHandler:  handlers.NewHealthHandler(),
		auth:           auth,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// WithHealth replaces the health handler, typically one carrying
// dependency checks
func (r *Router) WithHealth(h *handlers.HealthHandler) *Router {
	r.healthHandler = h
	return r
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Live)
	r.mux.HandleFunc("GET /ready", r.healthHandler.Ready)

	// Diagnoses
	r.mux.HandleFunc("GET /api/diagnoses", r.catalogHandler.ListDiagnoses)
	r.mux.HandleFunc("GET /api/diagnoses/{code}", r.catalogHandler.GetDiagnosis)

	// Items
	r.mux.HandleFunc("GET /api/items", r.catalogHandler.ListItems)
	r.mux.HandleFunc("GET /api/items/validate-code", r.catalogHandler.ValidateItemCode)
	r.mux.HandleFunc("GET /api/items/{uuid}", r.catalogHandler.GetItem)
	r.mux.HandleFunc("POST /api/items", r.catalogHandler.CreateItem)
	r.mux.HandleFunc("POST /api/items/delete", r.catalogHandler.DeleteItems)
	r.mux.HandleFunc("PUT /api/items/{uuid}", r.catalogHandler.UpdateItem)

	// Services
	r.mux.HandleFunc("GET /api/services", r.catalogHandler.ListServices)
	r.mux.HandleFunc("GET /api/services/validate-code", r.catalogHandler.ValidateServiceCode)
	r.mux.HandleFunc("GET /api/services/{uuid}", r.catalogHandler.GetService)
	r.mux.HandleFunc("POST /api/services", r.catalogHandler.CreateService)
	r.mux.HandleFunc("POST /api/services/delete", r.catalogHandler.DeleteServices)
	r.mux.HandleFunc("PUT /api/services/{uuid}", r.catalogHandler.UpdateService)

	if r.searchHandler != nil {
		r.mux.HandleFunc("GET /api/catalog/search", r.searchHandler.Search)
	}

	// Last wrap runs first. Observability sits directly on the mux so it
	// sees the matched pattern.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = loaders.Middleware(r.catalogHandler.Store())(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = r.auth.Middleware(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
