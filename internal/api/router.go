package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
// Routes are mounted for whichever service the server was built for.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	if s.controller != nil {
		r.Get("/", s.handleRelayHealth)
		r.Get("/control", s.handleControl)
	}

	if s.registration != nil {
		r.Get("/", s.handleRegistrationHealth)
		r.Post("/register", s.handleRegister)
		r.Get("/verify", s.handleVerify)
		r.Get("/status", s.handleStatus)
		r.Post("/reset", s.handleReset)
	}

	return r
}
