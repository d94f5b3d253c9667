package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", s.handleHealth)

		// Session status
		r.Get("/status", s.handleStatus)

		// Supervised process endpoints
		r.Route("/processes", func(r chi.Router) {
			r.Get("/", s.handleListProcesses)
			r.Get("/{name}", s.handleGetProcess)
		})

		// Persona store endpoints
		r.Route("/personas", func(r chi.Router) {
			r.Get("/", s.handleListPersonas)
			r.Post("/", s.handleCreatePersona)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetPersona)
				r.Delete("/", s.handleDeletePersona)
			})
		})

		// WebSocket output stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}
