// Package server wires the gateway together: router, middleware, routes,
// and the dependency graph from config down to handlers.
//
// COMPOSITION ROOT:
// New assembles everything in dependency order — database, token service,
// identity provider, auth service, handlers — so construction failures
// surface at startup, before the listener opens. A gateway that cannot
// reach its user store or has a bad signing secret must not serve a single
// login.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gmarinow/auth-gateway/internal/auth"
	"github.com/gmarinow/auth-gateway/internal/config"
	"github.com/gmarinow/auth-gateway/internal/handler"
	"github.com/gmarinow/auth-gateway/internal/middleware"
	sqliteRepo "github.com/gmarinow/auth-gateway/internal/repository/sqlite"
	"github.com/gmarinow/auth-gateway/internal/service"
)

// Server owns the HTTP router and the resources behind it. The database
// connection is closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency graph.
//
// The provider argument is the external IdP boundary. Pass nil to have New
// construct the real Google provider from config (the normal path); tests
// and alternative IdPs inject their own.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, provider auth.IdentityProvider) (*Server, error) {
	// Store first: Ping inside New is the startup connectivity probe.
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     cfg.JWTSecret,
		Algorithm:  cfg.JWTAlgorithm,
		Audience:   cfg.JWTAudience,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		ResetTTL:   cfg.ResetTTL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	if provider == nil {
		provider, err = auth.NewGoogleProvider(ctx,
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
		)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating google provider: %w", err)
		}
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	s.setupRoutes(provider, tokens)

	return s, nil
}

// setupRoutes configures middleware and the route table.
//
// ROUTES:
//
//	GET /health                → liveness probe
//	GET /auth/google/login     → 302 to provider consent
//	GET /auth/google/callback  → 302 with cookies or token-bearing redirect
//	GET /api/me                → authenticated user profile
func (s *Server) setupRoutes(provider auth.IdentityProvider, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// Browser clients on other origins need credentials allowed so the
	// token cookies flow on the same-site login path.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authService := service.NewAuthService(s.db, tokens, s.logger)
	authHandler := handler.NewAuthHandler(
		provider,
		tokens,
		authService,
		s.cfg.CookieDomain,
		s.cfg.ClientCallbackURL,
		s.logger,
	)

	s.router.Get("/health", handler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.HandleGoogleLogin)
		r.Get("/google/callback", authHandler.HandleGoogleCallback)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, s.logger))
		r.Get("/me", authHandler.HandleMe)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests for up
// to 30 seconds, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
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
			slog.Int("port", s.cfg.Port),
			slog.String("env", s.cfg.Env),
			slog.String("database", s.cfg.DBPath),
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
