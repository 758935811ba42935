package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/result-system/apiserver/config"
	"github.com/result-system/apiserver/internal/auth"
	"github.com/result-system/apiserver/internal/db"
	"github.com/result-system/apiserver/internal/handlers"
	"github.com/result-system/apiserver/internal/metrics"
	"github.com/result-system/apiserver/internal/mq"
	"github.com/result-system/apiserver/internal/ratelimit"
	"github.com/result-system/apiserver/internal/services"
	"github.com/result-system/apiserver/internal/session"
	"github.com/result-system/apiserver/internal/storage"
	"github.com/result-system/apiserver/internal/store"
)

// Server wraps the HTTP server and the clients it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	redis      *redis.Client
	mq         *mq.MQ
	storage    *storage.Storage
	log        *zap.Logger
}

// New connects every backing service named in cfg and wires the routes.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := auth.NewCodec(auth.CodecConfig{
		AccessSecret:   cfg.Auth.AccessTokenSecret,
		RefreshSecret:  cfg.Auth.RefreshTokenSecret,
		AccessExpires:  cfg.Auth.AccessTokenExpires,
		RefreshExpires: cfg.Auth.RefreshTokenExpires,
	})
	if err != nil {
		return nil, err
	}
	hasher, err := auth.NewHasher(auth.DefaultArgon2Params(), 0)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	rdb, err := NewRedisClient(ctx, cfg.Redis, log)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	avatars, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = rdb.Close()
		_ = dbConn.Close()
		return nil, err
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = avatars.Close()
		_ = rdb.Close()
		_ = dbConn.Close()
		return nil, err
	}

	m := metrics.New()
	userRepo := store.NewUserRepository(dbConn)
	classRepo := store.NewClassRepository(dbConn)
	sessions := session.NewStore(rdb)
	events := mq.NewUserEvents(broker, cfg.MQ.Topic, log)

	authService := services.NewAuthService(services.AuthDeps{
		Users:    userRepo,
		Sessions: sessions,
		Codec:    codec,
		Hasher:   hasher,
		Avatars:  avatars,
		Events:   events,
		Metrics:  m,
		Log:      log,
	})
	userService := services.NewUserService(userRepo, sessions, events, log)
	classService := services.NewClassService(classRepo, userRepo)

	limiter := ratelimit.New(
		rdb,
		"login",
		cfg.RateLimit.LoginMaxAttempts,
		time.Duration(cfg.RateLimit.LoginWindowMinutes)*time.Minute,
	)

	assetsDir := ""
	if cfg.Storage.Backend == "" || cfg.Storage.Backend == "local" {
		assetsDir = cfg.Storage.LocalDir
	}

	router := NewRouter(RouterDeps{
		Log:          log,
		Metrics:      m,
		Codec:        codec,
		AuthHandler:  handlers.NewAuthHandler(authService, limiter, m, log, cfg.Auth.CookieSecure),
		AdminHandler: handlers.NewAdminHandler(userService, classService, log),
		AssetsDir:    assetsDir,
		ClientURL:    cfg.ClientURL,
		TrustProxy:   cfg.TrustProxy,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		redis:      rdb,
		mq:         broker,
		storage:    avatars,
		log:        log,
	}, nil
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr(), err)
	}
	log.Info("connected to redis", zap.String("addr", cfg.Addr()), zap.Int("db", cfg.DB))
	return rdb, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.log.Info("listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// every client.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		err = errors.Join(err, s.mq.Close())
	}
	if s.storage != nil {
		err = errors.Join(err, s.storage.Close())
	}
	if s.redis != nil {
		err = errors.Join(err, s.redis.Close())
	}
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}
