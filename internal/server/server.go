package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/information-sharing-networks/abillio-demo/internal/abillio"
	"github.com/information-sharing-networks/abillio-demo/internal/config"
	"github.com/information-sharing-networks/abillio-demo/internal/logger"
	"github.com/information-sharing-networks/abillio-demo/internal/middleware"
	"github.com/information-sharing-networks/abillio-demo/internal/server/handlers"
)

// onboarding documents are small - keep their limit well below the proxy limit
const maxOnboardingRequestSize = 8 * 1024

//go:embed static
var staticFiles embed.FS

type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	abillio abillio.Requester
}

// NewServer creates the demo server. Requests to the abillio API are signed and sent by requester.
func NewServer(cfg *config.Config, logger *slog.Logger, requester abillio.Requester) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		abillio: requester,
	}

	s.setupMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Router exposes the configured routes (used by tests)
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware sets up the middleware that applies to all server requests
// note that the payload size limit and CORS are set on the /api routes only (see registerRoutes)
func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(logger.RequestLogging(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	// the upstream call has its own timeout, this covers the whole request
	s.router.Use(chimiddleware.Timeout(s.config.RequestTimeout()))
	s.router.Use(middleware.SecurityHeaders(s.config.Environment))
	s.router.Use(middleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
}

func (s *Server) registerRoutes() error {
	handlerService := &handlers.HandlerService{
		Abillio:         s.abillio,
		DefaultLanguage: s.config.DefaultLanguage,
		Environment:     s.config.Environment,
		DocsURL:         s.config.AbillioDocsURL(),
	}

	corsMiddleware, err := config.NewCORS(s.config)
	if err != nil {
		return err
	}

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("could not load static assets: %w", err)
	}

	s.router.Route("/health", func(r chi.Router) {
		// check the site is up
		r.Get("/live", handlerService.LivenessHandler)
	})
	s.router.Get("/version", handlerService.VersionHandler)

	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(corsMiddleware))

		// signed proxy to the abillio API
		r.Route("/abillio", func(r chi.Router) {
			r.Use(middleware.RequestSizeLimit(s.config.MaxAPIRequestSize))

			r.Get("/services", handlerService.ServicesHandler)
			r.Get("/*", handlerService.ProxyHandler)
			r.Post("/*", handlerService.ProxyHandler)
		})

		r.Route("/onboarding", func(r chi.Router) {
			r.Use(middleware.RequestSizeLimit(maxOnboardingRequestSize))

			r.Post("/", handlerService.CreateFreelancerHandler)
			r.Post("/{step}/validate", handlerService.ValidateStepHandler)
		})
	})

	// pages
	s.router.Get("/", handlerService.HandleRoot)
	s.router.Get("/{lang}", handlerService.HandleServicesPage)
	s.router.Get("/{lang}/onboarding", handlerService.HandleOnboardingPage)
	s.router.Get("/{lang}/usage/{strategy}", handlerService.HandleUsagePage)

	return nil
}

// Start runs the server until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("abillio demo listening",
			slog.String("address", addr),
			slog.String("environment", s.config.Environment),
			slog.String("abillio_api_url", s.config.AbillioAPIURL),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server forced to shutdown", slog.String("error", err.Error()))
			return err
		}
	}

	return nil
}
