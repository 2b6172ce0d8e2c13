package routes

import (
	"net/http"

	"github.com/danielcwq/stall-finder/internal/api/handlers"
	"github.com/danielcwq/stall-finder/internal/api/middleware"
	"github.com/danielcwq/stall-finder/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux            *http.ServeMux
	searchHandler  *handlers.SearchHandler
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(searchHandler *handlers.SearchHandler, allowedOrigins []string, metrics *observability.Metrics) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		searchHandler:  searchHandler,
		allowedOrigins: allowedOrigins,
		metrics:        metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Search endpoints
	r.mux.HandleFunc("POST /api/search", r.searchHandler.Search)
	r.mux.HandleFunc("POST /api/search/guided", r.searchHandler.GuidedSearch)

	// Last wrap runs first. CORS is outermost so preflights skip the rest.
	var handler http.Handler = r.mux
	handler = middleware.Logging(handler)
	handler = middleware.NoStore(handler)
	handler = middleware.Observability(r.metrics)(handler)
	handler = middleware.Compression(handler)
	handler = middleware.CORS(r.allowedOrigins)(handler)

	return handler
}
