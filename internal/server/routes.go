package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/result-system/apiserver/internal/handlers"
	"github.com/result-system/apiserver/internal/logging"
	"github.com/result-system/apiserver/internal/metrics"
)

const apiPrefix = "/api/v1"

// RouterDeps holds what the router needs to mount every route.
type RouterDeps struct {
	Log          *zap.Logger
	Metrics      *metrics.Metrics
	Codec        handlers.AccessVerifier
	AuthHandler  *handlers.AuthHandler
	AdminHandler *handlers.AdminHandler
	// AssetsDir is served under /assets when set.
	AssetsDir string
	// ClientURL is the browser origin allowed to call the API with cookies.
	ClientURL string
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable it only behind a proxy that overwrites those headers.
	TrustProxy bool
}

// NewRouter builds the middleware stack and mounts all routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if deps.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(
		middleware.Recoverer,
		logging.RequestLogger(deps.Log),
		deps.Metrics.Middleware,
		cors(deps.ClientURL),
		middleware.Timeout(60*time.Second),
	)
	router.NotFound(handlers.NotFound(deps.Log))

	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	if deps.AssetsDir != "" {
		router.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(deps.AssetsDir))))
	}

	requireAuth := handlers.RequireAuth(deps.Codec, deps.Log)
	router.Route(apiPrefix, func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, deps.AuthHandler, requireAuth)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, deps.AdminHandler, requireAuth)
		})
	})

	return router
}

// cors allows credentialed requests from origin. An empty origin disables it.
func cors(origin string) func(http.Handler) http.Handler {
	origin = strings.TrimRight(origin, "/")
	return func(next http.Handler) http.Handler {
		if origin == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Origin") != origin {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
