// Package server assembles the HTTP surface: echo with recovery, request
// logging and CORS, the v1 REST API, channel webhook ingress, the Prometheus
// endpoint and the appointments Atom feed.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/net/http2"

	"github.com/queryon/queryon/ai/metrics"
	"github.com/queryon/queryon/internal/profile"
	"github.com/queryon/queryon/internal/version"
	apiv1 "github.com/queryon/queryon/server/router/api/v1"
	"github.com/queryon/queryon/server/router/feed"
	"github.com/queryon/queryon/store"
)

// shutdownTimeout bounds the drain of in-flight requests plus the store
// close. Channel sends already run under their own deadlines.
const shutdownTimeout = 30 * time.Second

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	apiService *apiv1.APIV1Service
}

func NewServer(ctx context.Context, instanceProfile *profile.Profile, storeInstance *store.Store) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Pollers would drown the log.
			return c.Path() == "/healthz" || c.Path() == "/metrics"
		},
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))
	// An empty origin list falls back to echo's permissive default, which is
	// what a fresh installation without CORS_ORIGINS wants.
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: instanceProfile.CORSOrigins,
	}))

	s := &Server{
		Profile:    instanceProfile,
		Store:      storeInstance,
		echoServer: e,
	}

	exporter := metrics.NewExporter(metrics.DefaultConfig())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.GetCurrentVersion(instanceProfile.Mode),
		})
	})
	e.GET("/metrics", echo.WrapHandler(exporter.Handler()))

	apiService, err := apiv1.NewAPIV1Service(ctx, instanceProfile, storeInstance, exporter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create api v1 service")
	}
	apiService.Register(e)
	s.apiService = apiService

	feed.NewFeedService(instanceProfile, storeInstance).RegisterRoutes(e)

	return s, nil
}

// Start binds the listener synchronously so port clashes surface as a
// startup error, then serves h2c in the background.
func (s *Server) Start(_ context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", address)
	}
	s.echoServer.Listener = listener

	slog.Info("server started",
		slog.String("address", address),
		slog.String("version", version.GetCurrentVersion(s.Profile.Mode)))

	go func() {
		if err := s.echoServer.StartH2CServer("", &http2.Server{}); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to serve", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	if err := s.apiService.Close(); err != nil {
		slog.Error("failed to close channels", slog.String("error", err.Error()))
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}

	slog.Info("queryon stopped properly")
}
