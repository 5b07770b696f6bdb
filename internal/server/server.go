/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
// Package server exposes the analysis stages over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/GoogleCloudPlatform/tabular-insights/internal/analysis"
	"github.com/GoogleCloudPlatform/tabular-insights/internal/upload"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAddr           = ":8080"
	DefaultMaxUploadBytes = 32 << 20

	uploadPreviewRows     = 5
	preprocessPreviewRows = 10
	shutdownTimeout       = 5 * time.Second
)

// Config holds the listener settings.
type Config struct {
	Addr           string
	MaxUploadBytes int64
}

type Server struct {
	svc    *analysis.Service
	intake *upload.Intake
	cfg    Config
	logger *zap.Logger
}

// New returns a server that answers requests with svc. Zero Config fields
// take their defaults.
func New(svc *analysis.Service, intake *upload.Intake, cfg Config, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: svc, intake: intake, cfg: cfg, logger: logger}
}

// Handler returns the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewMux()
	r.Use(
		requestID,
		s.logRequests,
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/preprocess", s.handlePreprocess)
		r.Post("/profile", s.handleProfile)
		r.Post("/recommend", s.handleRecommend)
		r.Post("/analyze", s.handleAnalyze)
	})
	return r
}

// Serve listens on the configured address and blocks until ctx is cancelled
// or the listener fails. In-flight requests get a grace period to finish.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	s.logger.Info("starting server", zap.String("addr", ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Handler: s.routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
