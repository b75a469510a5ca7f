package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/holdings/validate", handler.ValidateHoldings).Methods("POST")
	api.HandleFunc("/portfolio/snapshot", handler.Snapshot).Methods("POST")
	api.HandleFunc("/series/{symbol}", handler.GetSeries).Methods("GET")
	api.HandleFunc("/budget", handler.GetBudget).Methods("GET")

	return r
}
