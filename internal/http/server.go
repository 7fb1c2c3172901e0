package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
)

type Server struct {
	Engine *gin.Engine

	log      *logger.Logger
	srv      *http.Server
	shutdown time.Duration
}

// NewServer has no write timeout: research streams stay open for the
// whole run.
func NewServer(cfg config.HTTPConfig, router RouterConfig) *Server {
	engine := NewRouter(router)
	log := router.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		Engine: engine,
		log:    log.With("component", "HTTPServer"),
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           engine,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout.Duration,
			IdleTimeout:       cfg.IdleTimeout.Duration,
		},
		shutdown: cfg.ShutdownTimeout.Duration,
	}
}

// Run serves until ctx is done, then drains connections for at most the
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.shutdown
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.log.Info("shutting down", "timeout_ms", timeout.Milliseconds())
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		// Streams still open at the deadline are cut.
		s.log.Warn("graceful shutdown timed out", "error", err.Error())
		_ = s.srv.Close()
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
