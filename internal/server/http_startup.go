package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"resumeflow/internal/builder"
	"resumeflow/internal/draft"
	"resumeflow/internal/observability"
	"resumeflow/internal/session"
	"resumeflow/internal/types"

	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 30 * time.Second
	draftDebounceDelay = 500 * time.Millisecond
)

// Start serves the API until ctx is cancelled, then shuts down gracefully.
// The Prometheus endpoint and the draft watcher run alongside when enabled.
func (s *Server) Start(ctx context.Context, om *observability.ObservabilityManager, out io.Writer) error {
	httpServer := s.setupHTTPServer(om)
	s.displayServerInfo(out)

	watcher, err := s.startDraftWatcher()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	servers := []*http.Server{httpServer}
	if promServer := om.PrometheusServer(); promServer != nil {
		servers = append(servers, promServer)
	}

	for _, srv := range servers {
		g.Go(func() error {
			s.Logger.Info("Starting HTTP server", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s failed: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.Logger.Info("Starting graceful shutdown")
		return s.performGracefulShutdown(servers, watcher)
	})

	return g.Wait()
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer(om *observability.ObservabilityManager) *http.Server {
	handler := om.HTTPMiddleware()(s.setupRoutes(om))
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      handler,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// startDraftWatcher follows edits to the builder draft made by another
// process and applies them to an open builder.
func (s *Server) startDraftWatcher() (*draft.Watcher, error) {
	if s.Drafts == nil || s.AppConfig == nil || !s.AppConfig.Draft.Watch {
		return nil, nil
	}
	watcher := draft.NewWatcher(s.Drafts, s.AppConfig.Draft.Key, draftDebounceDelay, s.applyDraft, s.Logger)
	if err := watcher.Start(); err != nil {
		return nil, fmt.Errorf("failed to watch drafts: %w", err)
	}
	return watcher, nil
}

func (s *Server) applyDraft(r *types.Resume) {
	if r == nil || s.Session.Stage() != session.StageBuilder {
		return
	}
	err := s.Session.WithBuilder(func(w *builder.Wizard) error {
		w.Replace(r)
		return nil
	})
	if err != nil {
		s.Logger.LogError(err, "Failed to apply changed draft")
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(servers []*http.Server, watcher *draft.Watcher) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop draft watcher")
		}
	}

	s.cleanupRateLimiter()
	// Abandon running operations so their handlers return.
	s.Session.Close()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close", "address", srv.Addr)
			errs = append(errs, srv.Close())
		}
	}

	s.Logger.Info("Server shutdown completed")
	return stderrors.Join(errs...)
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
