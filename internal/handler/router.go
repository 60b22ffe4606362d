package handler

import (
	"github.com/gorilla/mux"

	"github.com/Dan9191/bookkeeping-service/internal/config"
	"github.com/Dan9191/bookkeeping-service/internal/middleware"
)

// NewRouter wires every route. Everything except /login and /health is
// behind AuthMiddleware.
func NewRouter(h *Handler, cfg *config.Config) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(h.log))

	// Public routes
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/login", h.Login).Methods("POST")

	// Protected routes
	api := r.PathPrefix("/").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg))
	api.HandleFunc("/accounts", h.ListAccounts).Methods("GET")
	api.HandleFunc("/accounts", h.CreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{id}", h.GetAccount).Methods("GET")
	api.HandleFunc("/accounts/{id}/adjust", h.AdjustBalance).Methods("POST")
	api.HandleFunc("/transfers", h.Transfer).Methods("POST")
	api.HandleFunc("/history", h.History).Methods("GET")
	api.HandleFunc("/history/verify", h.VerifyHistory).Methods("GET")
	api.HandleFunc("/history/export", h.ExportStatement).Methods("GET")
	return r
}
