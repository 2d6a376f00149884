package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wpdrift/worker/internal/observability/logger"
)

// Server envuelve http.Server con arranque y shutdown graceful.
type Server struct {
	srv             *stdhttp.Server
	shutdownTimeout time.Duration
	log             *zap.Logger
}

func NewServer(addr string, handler stdhttp.Handler, readTimeout, writeTimeout, shutdownTimeout time.Duration) *Server {
	return &Server{
		srv: &stdhttp.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		shutdownTimeout: shutdownTimeout,
		log:             logger.Named("http"),
	}
}

// Run sirve hasta que ctx se cancele y después drena con el timeout
// configurado. Devuelve el error de ListenAndServe salvo el cierre normal.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}
