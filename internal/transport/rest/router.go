package rest

import "net/http"

// NewRouter registers the serving routes.
func NewRouter(restaurants *RestaurantHandler, health *HealthHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/restaurants", restaurants.List)
	mux.HandleFunc("GET /api/restaurants/{id}", restaurants.Get)
	mux.HandleFunc("GET /live", health.Live)
	mux.HandleFunc("GET /ready", health.Ready)
	mux.HandleFunc("GET /health", health.Health)
	return mux
}
