package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/CC-PatrickC/MyGovRemaster/internal/config"
	"github.com/CC-PatrickC/MyGovRemaster/internal/filestore"
	"github.com/CC-PatrickC/MyGovRemaster/internal/handlers"
	"github.com/CC-PatrickC/MyGovRemaster/internal/middleware"
	"github.com/CC-PatrickC/MyGovRemaster/internal/repository/postgres"
	"github.com/CC-PatrickC/MyGovRemaster/internal/service"
)

func New(log zerolog.Logger, db *pgxpool.Pool, files filestore.Store, cfg config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(200, time.Minute))
	r.Use(middleware.WithAuth(log, cfg))

	// Health
	r.Get("/healthz", handlers.Health())

	// Repos + services + handlers
	requestRepo := postgres.NewRequestRepo(db)
	attachmentRepo := postgres.NewAttachmentRepo(db)
	historyRepo := postgres.NewHistoryRepo(db)
	userRepo := postgres.NewUserRepo(db)

	workflow := service.NewWorkflowService(requestRepo, attachmentRepo, historyRepo, files, log)
	auth := service.NewAuthService(userRepo, cfg.SessionSecret)

	ah := handlers.NewAuthHTTP(auth, userRepo)
	rh := handlers.NewRequestHTTP(workflow, requestRepo, userRepo)
	fh := handlers.NewAttachmentHTTP(workflow, userRepo)
	dh := handlers.NewDashboardHTTP(workflow, userRepo)
	uh := handlers.NewUserHTTP(userRepo)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", ah.Register())
		r.Post("/login", ah.Login())
		r.Post("/logout", ah.Logout())
		r.Get("/me", ah.Me())
	})

	r.Route("/api/requests", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", rh.List())
		r.Post("/", rh.Create())
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", rh.Get())
			r.Patch("/", rh.Update())
			r.Post("/archive", rh.Archive())
			r.Post("/attachments", fh.Upload())
		})
	})

	r.Route("/api/attachments/{id}", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/file", fh.Download())
		r.Delete("/", fh.Delete())
	})

	r.With(middleware.RequireAuth).Get("/api/dashboard", dh.Summary())

	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(middleware.RequireAdmin).Get("/", uh.List())
		r.Route("/{id}", func(r chi.Router) {
			r.With(middleware.RequireAdmin).Patch("/admin", uh.SetAdmin())
			r.With(middleware.RequireAdmin).Patch("/groups", uh.SetGroups())
			r.With(middleware.RequireAdmin).Patch("/active", uh.SetActive())
			r.With(middleware.RequireSelfOrAdmin).Patch("/basic", uh.UpdateBasic())
			r.With(middleware.RequireSelfOrAdmin).Patch("/password", uh.UpdatePassword())
		})
	})

	return r
}
