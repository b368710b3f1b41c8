// Package server wires the application together: it owns the router, the
// database connection, and the dependency graph from repositories up through
// handlers, and it runs the HTTP listener with graceful shutdown.
//
// Everything is assembled in one place (New/setupRoutes) so the rest of the
// codebase stays free of wiring concerns: services receive repository
// interfaces, handlers receive services, and nothing reaches across layers.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/CauseImYourFat/real-life-rpg/internal/auth"
	"github.com/CauseImYourFat/real-life-rpg/internal/config"
	"github.com/CauseImYourFat/real-life-rpg/internal/handler"
	"github.com/CauseImYourFat/real-life-rpg/internal/middleware"
	sqliteRepo "github.com/CauseImYourFat/real-life-rpg/internal/repository/sqlite"
	"github.com/CauseImYourFat/real-life-rpg/internal/service"
)

// Server owns the HTTP router and the resources that must be released on
// shutdown (the database connection).
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency graph and registers all routes.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	ttl, err := time.ParseDuration(s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("parsing TOKEN_TTL %q: %w", s.config.TokenTTL, err)
	}
	tokens, err := auth.NewTokenService(s.config.JWTSecret, ttl)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(s.config.BcryptCost)

	var google *auth.GoogleProvider
	if s.config.GoogleEnabled() {
		google = auth.NewGoogleProvider(
			s.config.GoogleClientID,
			s.config.GoogleClientSecret,
			s.config.GoogleCallbackURL,
		)
	} else {
		s.logger.Warn("Google OAuth not configured, OAuth routes disabled")
	}

	authSvc := service.NewAuthService(s.db, s.db, tokens, passwords, s.logger)
	dataSvc := service.NewUserDataService(s.db, s.logger)
	tamaSvc := service.NewTamagotchiService(s.db, s.db, s.logger)

	authHandler := handler.NewAuthHandler(authSvc, google, s.logger)
	userHandler := handler.NewUserHandler(authSvc, dataSvc, s.logger)
	tamaHandler := handler.NewTamagotchiHandler(tamaSvc, s.logger)
	healthHandler := handler.NewHealthHandler(authSvc, s.logger)
	assetHandler := handler.NewAssetHandler(s.config.AssetDir, s.logger)

	// Middleware order: request ID first so the logger can include it,
	// Recoverer innermost-but-before-handlers so panics become 500s that
	// still get logged.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Route("/api", func(r chi.Router) {
		// Public routes.
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Get("/health", healthHandler.HandleHealth)
		r.Get("/assets/{folder}", assetHandler.HandleList)

		if google != nil {
			r.Get("/auth/google", authHandler.HandleGoogleLogin)
			r.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
		}

		// Everything under /api/user requires a valid session token.
		r.Route("/user", func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/data", userHandler.HandleGetData)
			r.Post("/data", userHandler.HandleSaveData)
			r.Post("/health", userHandler.HandleSaveHealth)
			r.Put("/username", userHandler.HandleChangeUsername)
			r.Put("/password", userHandler.HandleChangePassword)
			r.Put("/profile", userHandler.HandleUpdateProfile)
			r.Delete("/delete", userHandler.HandleDeleteAccount)

			r.Get("/tamagotchi", tamaHandler.HandleGet)
			r.Put("/tamagotchi", tamaHandler.HandleMutate)
		})
	})

	// The SPA build is served from StaticDir. Unknown non-API paths fall
	// back to index.html so client-side routes survive a page reload.
	s.router.NotFound(spaHandler(s.config.StaticDir))

	return nil
}

// spaHandler serves static files, falling back to index.html for paths that
// don't correspond to a file. API paths never reach here (they're routed
// above), so a stray GET /api/nope still 404s as JSON-free plain text.
func spaHandler(staticDir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(staticDir))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}

		path := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
	}
}

// Start runs the listener and blocks until a shutdown signal or a fatal
// server error. On SIGINT/SIGTERM, in-flight requests get 30 seconds to
// finish before the database is closed.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Handler exposes the router for tests that drive the server through
// httptest without opening a real listener.
func (s *Server) Handler() http.Handler {
	return s.router
}
