// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api assembles the HTTP surface of the server: the authorization
// engine endpoints, the guarded interaction routes and the operational
// endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apierrors "github.com/tryextra/extra-oidc/pkg/api/errors"
	v1 "github.com/tryextra/extra-oidc/pkg/api/v1"
	"github.com/tryextra/extra-oidc/pkg/authserver"
	"github.com/tryextra/extra-oidc/pkg/identity"
	"github.com/tryextra/extra-oidc/pkg/interaction"
	"github.com/tryextra/extra-oidc/pkg/logger"
	"github.com/tryextra/extra-oidc/pkg/views"
)

const (
	middlewareTimeout = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 45 * time.Second // Must be > middlewareTimeout
	idleTimeout       = 60 * time.Second

	// DefaultGracefulTimeout bounds Serve's shutdown.
	DefaultGracefulTimeout = 30 * time.Second
)

// RouterConfig holds what NewRouter mounts.
type RouterConfig struct {
	Engine      *authserver.Server
	Guard       *interaction.Guard
	Interaction *interaction.Handler
	Errors      *apierrors.Writer

	// Bridge is nil when no upstream identity provider is configured.
	Bridge *identity.Bridge

	// RateLimiter guards the interaction routes when set.
	RateLimiter *RateLimiter

	// Metrics is served on /metrics when set.
	Metrics http.Handler

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	// Checks are probed by /health.
	Checks []v1.Check
}

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// requestLogger attaches a logger carrying the request id to the request context.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		l := logger.FromContext(ctx).With("request_id", middleware.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx, l)))
	})
}

// NewRouter builds the handler of the server.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		requestLogger,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(middlewareTimeout),
		headersMiddleware,
	)

	r.Mount("/health", v1.HealthcheckRouter(cfg.Checks...))
	r.Mount("/version", v1.VersionRouter())
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}
	r.Handle(views.StaticPath+"*", views.Static())

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}

		// The failure screen outlives the interaction.
		r.Get(interaction.FailedPath, cfg.Errors.ErrorHandler(cfg.Interaction.Failed))

		r.Route(interaction.BasePath, func(r chi.Router) {
			r.Use(cfg.Guard.Middleware)
			cfg.Interaction.Routes(r)
			if cfg.Bridge != nil {
				cfg.Bridge.Routes(r)
			}
		})
	})

	cfg.Engine.Routes(r)

	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}
	return otelhttp.NewHandler(r, "extra-oidc", opts...)
}

// Serve serves handler on address until ctx is done, then shuts down within
// DefaultGracefulTimeout. It is assumed that the caller sets up signal handling.
func Serve(ctx context.Context, address string, handler http.Handler) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return serve(ctx, listener, handler)
}

func serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("server listening on %s", listener.Addr())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped with error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultGracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server shutdown complete")
	return nil
}
