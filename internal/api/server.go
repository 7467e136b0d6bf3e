// Copyright (c) 2025 drowolath
// Licensed under the MIT License.
// See the LICENSE file in the repository root for details.

// Package api exposes media lookups, reconciled schedules and listing
// application over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/drowolath/dvbboxes/internal/api/middleware"
	"github.com/drowolath/dvbboxes/internal/log"
	"github.com/drowolath/dvbboxes/internal/media"
	"github.com/drowolath/dvbboxes/internal/program"
	"github.com/drowolath/dvbboxes/internal/replicate"
	"github.com/drowolath/dvbboxes/internal/schedule"
	"github.com/drowolath/dvbboxes/internal/store"
)

// MediaService is the media duration cache.
type MediaService interface {
	Resolve(ctx context.Context, name string) (media.Asset, error)
	Search(ctx context.Context, expr string, sites ...string) ([]string, error)
	Schedule(ctx context.Context, asset media.Asset) (map[string][]float64, error)
}

// ProgramService is the schedule reconciler.
type ProgramService interface {
	Query(ctx context.Context, day schedule.Day, channel string, at time.Time, sites ...string) (program.Schedule, error)
	StartTimesOf(ctx context.Context, asset string, day schedule.Day, channel string, at time.Time, sites ...string) ([]float64, error)
}

// Replicator writes compiled days to replicas.
type Replicator interface {
	Apply(ctx context.Context, docs []schedule.Document, channel string, sites ...string) (replicate.Report, error)
}

// ChannelResolver maps a channel name or service id to a service id.
type ChannelResolver interface {
	ResolveChannel(nameOrID string) (string, error)
}

// Deps are the collaborators a Server serves from.
type Deps struct {
	Media      MediaService
	Programs   ProgramService
	Replicator Replicator
	Channels   ChannelResolver
	Health     store.Store  // pinged by /healthz, may be nil
	Ready      http.Handler // serves /readyz, may be nil
}

// Options tunes the HTTP surface.
type Options struct {
	Location        *time.Location
	Anchor          schedule.Clock
	Concurrency     int
	RateLimit       int
	RateWindow      time.Duration
	MaxListingBytes int64 // default 1 MiB
	Now             func() time.Time
	Logger          *zerolog.Logger
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger
	router chi.Router
}

// New builds the router.
func New(deps Deps, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Anchor == (schedule.Clock{}) {
		opts.Anchor = schedule.DefaultAnchor
	}
	if opts.MaxListingBytes <= 0 {
		opts.MaxListingBytes = 1 << 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := log.WithComponent("api")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	s := &Server{deps: deps, opts: opts, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        "dvbboxes/api",
		EnableLogging:         true,
		RateLimit:             s.opts.RateLimit,
		RateLimitWindow:       s.opts.RateWindow,
	})

	r.Get("/healthz", s.handleHealth)
	if s.deps.Ready != nil {
		r.Method(http.MethodGet, "/readyz", s.deps.Ready)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/programs/{day}/{channel}", s.handleProgram)
		r.Get("/programs/{day}/{channel}/assets/{name}", s.handleProgramAsset)

		r.Get("/media", s.handleMediaSearch)
		r.Get("/media/{name}", s.handleMediaInfo)
		r.Get("/media/{name}/schedule", s.handleMediaSchedule)

		r.Post("/listings", s.handleListing)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str(log.FieldAddr, addr).Str(log.FieldEvent, "api.listening").Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("API server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Error().Err(err).Str(log.FieldEvent, "api.server.failed").Msg("API server failed")
			return err
		}
		return nil
	case <-ctx.Done():
		s.logger.Info().Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(r.Context()); err != nil {
			writeServiceUnavailable(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
