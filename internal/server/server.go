// Package server serves the score report, the model graph and a JSON API over
// HTTP, optionally re-analyzing the project when its manifest changes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/modaryn/pkg/core"
	"golang.org/x/sync/errgroup"
)

// DefaultPort is the port used when Config.Port is zero.
const DefaultPort = 8790

const debounce = 200 * time.Millisecond

// LoadFunc loads and analyzes the project. It runs once on start and again
// after every watched file change.
type LoadFunc func(ctx context.Context) (*core.Project, error)

// Config holds configuration for the server.
type Config struct {
	Load LoadFunc
	Port int
	// Watch enables reloading when one of WatchFiles changes.
	Watch      bool
	WatchFiles []string
	Logger     *slog.Logger
}

// Server serves one analyzed project.
type Server struct {
	load       LoadFunc
	port       int
	watch      bool
	watchFiles []string
	logger     *slog.Logger
	notifier   *notifier

	mu       sync.RWMutex
	project  *core.Project
	loadedAt time.Time
}

// New creates a server. Call Reload or Serve before handling requests.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	return &Server{
		load:       cfg.Load,
		port:       port,
		watch:      cfg.Watch,
		watchFiles: cfg.WatchFiles,
		logger:     logger,
		notifier:   newNotifier(),
	}
}

// Project returns the current project, or nil before the first load.
func (s *Server) Project() *core.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project
}

// Reload loads the project again and notifies event subscribers. On error
// the previous project stays in place.
func (s *Server) Reload(ctx context.Context) error {
	start := time.Now()
	p, err := s.load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.project = p
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("project loaded", "models", len(p.Models), "duration", time.Since(start))
	s.notifier.broadcast()
	return nil
}

// Serve loads the project, starts the HTTP server and blocks until the
// context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting report server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		eg.Go(func() error {
			return s.watchFilesLoop(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down report server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Compress(5),
		s.requestLogger,
	)

	r.Get("/", s.handleReport)
	r.Get("/graph", s.handleGraph)
	r.Get("/events", s.handleEvents)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/project", s.handleProject)
		r.Get("/models", s.handleModels)
		r.Get("/models/{id}", s.handleModel)
		r.Get("/models/{id}/columns/{column}/lineage", s.handleColumnLineage)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// watchFilesLoop re-loads the project when a watched file is written.
// Parent directories are watched so that files replaced by rename are seen.
func (s *Server) watchFilesLoop(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	watched := make(map[string]bool, len(s.watchFiles))
	for _, f := range s.watchFiles {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		watched[abs] = true
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			s.logger.Error("failed to watch directory", "dir", filepath.Dir(abs), "error", err)
		}
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !watched[name] {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounce, func() {
				s.logger.Debug("file changed, re-analyzing", "file", name)
				if err := s.Reload(ctx); err != nil {
					s.logger.Error("reload failed", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}
