// Package server exposes the task timer and estimator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/josephgoksu/TaskPace/internal/app"
	"golang.org/x/sync/errgroup"
)

// Options configures the HTTP server.
type Options struct {
	Port           int
	AllowedOrigins []string
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit float64
	RateBurst int
	// ShutdownTimeout bounds graceful shutdown. Defaults to 10s.
	ShutdownTimeout time.Duration
}

type Server struct {
	appCtx   *app.Context
	tasks    *app.TaskApp
	origins  map[string]struct{}
	limiter  *clientLimiter
	server   *http.Server
	shutdown time.Duration
}

func New(appCtx *app.Context, opts Options) *Server {
	s := &Server{
		appCtx:   appCtx,
		tasks:    app.NewTaskApp(appCtx),
		origins:  make(map[string]struct{}, len(opts.AllowedOrigins)),
		shutdown: opts.ShutdownTimeout,
	}
	for _, o := range opts.AllowedOrigins {
		s.origins[o] = struct{}{}
	}
	if opts.RateLimit > 0 {
		s.limiter = newClientLimiter(opts.RateLimit, opts.RateBurst)
	}
	if s.shutdown <= 0 {
		s.shutdown = 10 * time.Second
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.registerRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully and flushes
// the estimator so no learned state is lost.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdown)
		defer cancel()

		err := s.server.Shutdown(shutdownCtx)
		if s.appCtx.Estimator != nil {
			if cerr := s.appCtx.Estimator.Close(shutdownCtx); cerr != nil {
				slog.Error("failed to persist model on shutdown", "error", cerr)
				err = errors.Join(err, cerr)
			}
		}
		slog.Info("API server stopped")
		return err
	})

	return g.Wait()
}
