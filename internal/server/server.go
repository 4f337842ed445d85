// Package server wires the application together and runs the HTTP server.
//
// COMPOSITION ROOT:
// Every dependency is built here and nowhere else:
//
//	config ─┬─ sqldb.DB ───────────── AuthService, CatalogService
//	        ├─ session store ──────── SessionManager (Redis or memory)
//	        ├─ upload storage ─────── Uploader, /uploads/* (MinIO or disk)
//	        ├─ GoogleProvider ─────── AuthHandler (only when configured)
//	        └─ view.Templates ─────── Pages
//
// Optional backends are picked from the config: setting REDIS_ADDR moves
// sessions to Redis, setting MINIO_ENDPOINT moves uploads to MinIO, and
// setting both Google credentials turns on Google sign-in.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/bookshelf/internal/auth"
	"github.com/sakif/bookshelf/internal/config"
	"github.com/sakif/bookshelf/internal/handler"
	"github.com/sakif/bookshelf/internal/middleware"
	"github.com/sakif/bookshelf/internal/repository/sqldb"
	"github.com/sakif/bookshelf/internal/service"
	"github.com/sakif/bookshelf/internal/session"
	"github.com/sakif/bookshelf/internal/upload"
	"github.com/sakif/bookshelf/internal/view"
)

const shutdownTimeout = 30 * time.Second

// Server owns the router and the connections it must close on shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db    *sqldb.DB
	redis *redis.Client // nil when sessions live in memory
}

// New connects to every configured backend and builds the router. On error
// anything already opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Server, err error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	// === DATABASE ===
	s.db, err = sqldb.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// === SESSIONS ===
	var store session.Store
	if cfg.RedisEnabled() {
		s.redis, err = session.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		store = session.NewRedisStore(s.redis)
	} else {
		logger.Warn("REDIS_ADDR not set; sessions are kept in memory and lost on restart")
		store = session.NewMemoryStore()
	}

	tokens, err := auth.NewTokenService(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	sessions := auth.NewSessionManager(store, tokens, logger)

	// === UPLOADS ===
	storage, err := s.uploadStorage(ctx)
	if err != nil {
		return nil, err
	}

	// === GOOGLE ===
	// A nil interface, not a nil *GoogleProvider, so the handler can tell.
	var google handler.GoogleAuth
	if cfg.GoogleEnabled() {
		google = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.CallbackURL)
	} else {
		logger.Warn("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set; Google sign-in is disabled")
	}

	// === VIEWS ===
	views, err := view.New(cfg.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	authService := service.NewAuthService(s.db.Users(), auth.NewPasswordService(), logger)
	catalogService := service.NewCatalogService(s.db.Items(), logger)

	pages := handler.NewPages(views, catalogService, sessions, logger)
	s.setupRoutes(
		sessions,
		handler.NewAuthHandler(pages, authService, google),
		handler.NewCatalogHandler(pages, upload.NewUploader(storage)),
		upload.Handler(storage, logger),
	)

	return s, nil
}

func (s *Server) uploadStorage(ctx context.Context) (upload.Storage, error) {
	if s.config.MinioEnabled() {
		storage, err := upload.NewMinioStorage(ctx, upload.MinioConfig{
			Endpoint:  s.config.MinioEndpoint,
			AccessKey: s.config.MinioAccessKey,
			SecretKey: s.config.MinioSecretKey,
			Bucket:    s.config.MinioBucket,
			UseSSL:    s.config.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to object storage: %w", err)
		}
		return storage, nil
	}

	storage, err := upload.NewDiskStorage(s.config.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("preparing upload directory: %w", err)
	}
	return storage, nil
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET  /                  public catalog
//	GET  /about             about page
//	GET  /login, /signup    forms
//	POST /login, /signup    local credentials
//	GET  /logout            end the session
//	GET  /auth/google       start Google sign-in
//	GET  /auth/google/add   Google callback
//	GET  /users/{id}        private reviews of a user
//	GET  /add-review        new review form
//	POST /add-review        create (signed-in users only)
//	POST /edit              preview of an edited review
//	GET  /reviews/{id}      one review
//	GET  /edit-review/{id}  edit form
//	POST /update            save an edit
//	POST /search, /sort, /genre
//	POST /delete-review     delete and go back
//	GET  /static/*, /uploads/*
//
// MIDDLEWARE ORDER:
// RequestID and RealIP first so every later step sees them, Recoverer
// around everything that touches the app, then the session and the user,
// and the request log last so it can name the user.
func (s *Server) setupRoutes(sessions *auth.SessionManager, authHandler *handler.AuthHandler, catalogHandler *handler.CatalogHandler, uploads http.Handler) {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// Static files never need a session.
	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	r.Handle("/uploads/*", http.StripPrefix(upload.PathPrefix, uploads))

	r.Group(func(r chi.Router) {
		r.Use(sessions.Load)
		r.Use(auth.Principal(s.db.Users(), s.logger))
		r.Use(middleware.Logger(s.logger))

		r.Get("/", catalogHandler.HandleIndex)
		r.Get("/about", catalogHandler.HandleAbout)

		r.Get("/login", authHandler.HandleLoginPage)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/signup", authHandler.HandleSignupPage)
		r.Post("/signup", authHandler.HandleSignup)
		r.Get("/logout", authHandler.HandleLogout)
		r.Get("/auth/google", authHandler.HandleGoogleLogin)
		r.Get("/auth/google/add", authHandler.HandleGoogleCallback)

		r.Get("/users/{id}", catalogHandler.HandleUserPage)
		r.Get("/add-review", catalogHandler.HandleAddPage)
		r.With(auth.RequireUser).Post("/add-review", catalogHandler.HandleCreate)
		r.Post("/edit", catalogHandler.HandlePreview)
		r.Get("/reviews/{id}", catalogHandler.HandleReview)
		r.Get("/edit-review/{id}", catalogHandler.HandleEditPage)
		r.Post("/update", catalogHandler.HandleUpdate)
		r.Post("/search", catalogHandler.HandleSearch)
		r.Post("/sort", catalogHandler.HandleSort)
		r.Post("/genre", catalogHandler.HandleGenre)
		r.Post("/delete-review", catalogHandler.HandleDelete)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests for
// up to 30 seconds and closes the backends.
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", string(s.db.Dialect())),
			slog.Bool("redis", s.redis != nil),
			slog.Bool("minio", s.config.MinioEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// close releases the database and Redis connections. Safe on a partly
// built Server.
func (s *Server) close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("closing database", slog.String("error", err.Error()))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("closing redis", slog.String("error", err.Error()))
		}
	}
}
