package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/khukmani/bettervisuals/internal/dashboards"
	"github.com/khukmani/bettervisuals/internal/repositories"
	"github.com/khukmani/bettervisuals/internal/shared"
	"github.com/khukmani/bettervisuals/internal/store"
	"golang.org/x/sync/errgroup"
)

// Server owns the HTTP surface: routing, sessions, and the handler set.
type Server struct {
	config   *shared.Config
	logger   *log.Logger
	handlers *Handlers
}

// New builds a server from configuration and an open database. The dashboard
// manifest is validated here so a bad registry fails at startup.
func New(config *shared.Config, logger *log.Logger, db *sql.DB) (*Server, error) {
	if err := dashboards.Validate(); err != nil {
		return nil, fmt.Errorf("dashboard manifest: %w", err)
	}

	if config.Server.SecretKey == "" {
		return nil, fmt.Errorf("%w: server secret_key is required", shared.ErrInvalidConfig)
	}

	google, err := NewGoogleAuthenticator(config.Credentials.Google.Map())
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}

	handlers := NewHandlers(
		config,
		logger,
		NewSessionStore(config.Server.SecretKey),
		repositories.NewUserRepository(db),
		repositories.NewNoteRepository(db),
		store.NewArtifactStore(config.Storage.DataDir),
		google,
	)

	return &Server{
		config:   config,
		logger:   logger,
		handlers: handlers,
	}, nil
}

// Handler assembles the full middleware and routing stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		middleware.Compress(5),
		RequestLogger(s.logger),
	)

	s.handlers.Routes(r)
	return r
}

// Serve runs the HTTP server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr := s.config.Server.Addr()
	s.logger.Info("starting server", "addr", addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
