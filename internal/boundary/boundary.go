// Package boundary runs the HTTP server the dashboard origin talks to. It
// answers cross-origin requests from the configured dashboard origin and
// exposes this process's own metrics and health.
package boundary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leanbalancer/admindash/internal/config"
	"github.com/leanbalancer/admindash/internal/metrics"
	"github.com/leanbalancer/admindash/internal/middleware"
)

// ErrAddressInUse is returned by Listen when another process holds the
// port. The server never falls back to a different port.
var ErrAddressInUse = errors.New("address already in use")

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// Listen binds addr. A port conflict is reported as ErrAddressInUse.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen %s: %w", addr, ErrAddressInUse)
		}
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

// Server is an HTTP server with graceful shutdown. Write and read timeouts
// stay unset so event streams are not cut off.
type Server struct {
	name   string
	srv    *http.Server
	logger *zap.Logger

	// cancel ends every request context on shutdown, so long-lived event
	// streams return instead of holding Shutdown open.
	cancel context.CancelFunc
}

// NewServer wraps h. name labels the server's log lines.
func NewServer(name string, h http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Server{
		name: name,
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ErrorLog:          zap.NewStdLog(logger.Named("http")),
			BaseContext:       func(net.Listener) context.Context { return base },
		},
		logger: logger,
		cancel: cancel,
	}
}

// New builds the boundary server. Extra routes (the admin API) are
// registered on mux by the caller; New adds /healthz and /metrics.
func New(cfg *config.Config, mux *http.ServeMux, logger *zap.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", handleHealth)
	return NewServer("boundary", Handler(cfg, mux, logger, m), logger)
}

// Handler wraps h in the boundary middleware chain. The outermost layer
// comes first.
func Handler(cfg *config.Config, h http.Handler, logger *zap.Logger, m *metrics.Metrics) http.Handler {
	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.StructuredLogging(logger),
		m.Instrument("boundary"),
		middleware.CORS(cfg.Boundary.AllowedOrigins, m.RecordCORS),
	}
	if cfg.RateLimit.Enabled {
		mws = append(mws, middleware.RateLimit(cfg.RateLimit))
	}
	if cfg.Auth.Enabled {
		mws = append(mws, middleware.Auth(cfg.Auth))
	}
	return middleware.Chain(h, mws...)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("server", s.name), zap.String("addr", ln.Addr().String()))
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.cancel()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", zap.String("server", s.name))
	s.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "running"})
}
