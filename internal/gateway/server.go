package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server runs the gateway router on a TCP listener.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// NewServer creates a server for addr. Nothing listens until Listen.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: readTimeout,
			WriteTimeout:      writeTimeout,
		},
	}
}

// Listen binds the address and returns the bound address.
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind token server on %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	return ln.Addr(), nil
}

// Serve accepts connections until ctx is cancelled, then shuts down
// gracefully. Listen must have succeeded first.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("gateway: Serve called before Listen")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("token server listening", "addr", s.ln.Addr().String())
		errCh <- s.srv.Serve(s.ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("token server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down token server: %w", err)
	}
	logger.Info("token server stopped")
	return nil
}
