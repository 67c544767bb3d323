package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facedb/internal/web/handlers"
	"github.com/kozaktomas/facedb/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.session, s.version)
	identitiesHandler := handlers.NewIdentitiesHandler(s.session, s.logger)
	recognizeHandler := handlers.NewRecognizeHandler(s.session, s.logger)
	settingsHandler := handlers.NewSettingsHandler(s.session, s.logger)
	databaseHandler := handlers.NewDatabaseHandler(s.session, s.logger)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", healthHandler.Get)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.APIToken))

		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Get("/identities/{name}", identitiesHandler.Get)
		r.Put("/identities/{name}", identitiesHandler.Enroll)
		r.Delete("/identities/{name}", identitiesHandler.Delete)

		// Recognition
		r.Post("/recognize", recognizeHandler.Recognize)

		// Settings
		r.Get("/settings/tolerance", settingsHandler.GetTolerance)
		r.Put("/settings/tolerance", settingsHandler.SetTolerance)

		// Persistence
		r.Get("/database", databaseHandler.Info)
		r.Post("/database/save", databaseHandler.Save)
		r.Post("/database/reload", databaseHandler.Reload)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "not found"}`))
	})
}
