package http

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/mindengage-qtifix/internal/auth/middleware"
	"github.com/mind-engage/mindengage-qtifix/internal/jobs"
	"github.com/mind-engage/mindengage-qtifix/internal/logger"
	"github.com/mind-engage/mindengage-qtifix/internal/rbac"
	"github.com/mind-engage/mindengage-qtifix/internal/storage"
)

const maxUpload = 512 << 20

type Deps struct {
	DB          *sql.DB
	Store       *jobs.SQLStore
	Runner      *jobs.Runner
	Blobs       storage.BlobStore
	Auth        *auth.AuthService
	Account     auth.Account
	CORSOrigins []string
	Timeout     time.Duration // per request; zero means 10m
	Log         *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Log), middleware.Recoverer)
	r.Use(middleware.Timeout(d.Timeout))
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length", "Content-Disposition", "X-Job-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Account))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermJobCreate)).
			Post("/jobs", CreateJobHandler(d.Runner))
		pr.With(rbac.Require(rbac.PermJobCreate)).
			Post("/fixup", FixupHandler(d.Runner, maxUpload))

		pr.With(rbac.Require(rbac.PermJobView)).
			Get("/jobs", ListJobsHandler(d.Store))
		pr.With(rbac.Require(rbac.PermJobView)).
			Get("/jobs/{id}", GetJobHandler(d.Store))
		pr.With(rbac.Require(rbac.PermJobView)).
			Get("/jobs/{id}/output", JobOutputHandler(d.Blobs))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			if err := d.DB.PingContext(r.Context()); err != nil {
				respondError(w, http.StatusServiceUnavailable, "db: "+err.Error())
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
