package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ignite/leadflow/internal/pkg/logger"
)

// Server wraps the HTTP listener with sane timeouts and graceful shutdown.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

// NewServer builds a server listening on addr, serving the given handlers.
func NewServer(addr string, h *Handlers) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(h),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: logger.With("api"),
	}
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
