package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"joke-server/internal/config"
	"joke-server/internal/models"
	"joke-server/internal/service"
	"joke-server/pkg/logger"
	"joke-server/web"
)

type JokeService interface {
	Random(ctx context.Context) (*service.Result, error)
	AI(ctx context.Context) (*service.Result, error)
	All() []models.Joke
}

type Server struct {
	svc     JokeService
	router  *http.ServeMux
	handler http.Handler
	index   []byte
	started time.Time
	now     func() time.Time
}

type Option func(*Server)

// WithIndex replaces the embedded front-end document.
func WithIndex(doc []byte) Option {
	return func(s *Server) {
		if len(doc) > 0 {
			s.index = doc
		}
	}
}

func New(svc JokeService, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		router:  http.NewServeMux(),
		index:   web.Index,
		started: time.Now(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()
	s.handler = RequestIDMiddleware()(RecoveryMiddleware()(s.router))

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Run serves on cfg.Addr() until ctx is cancelled, then drains in-flight
// requests for at most cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context, cfg config.HTTPConfig) error {
	httpSrv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
