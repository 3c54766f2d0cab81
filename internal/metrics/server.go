// Package metrics exposes Prometheus collectors for the pipeline and a
// small HTTP surface (metrics scrape, health check, dashboard feed).
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server serves /metrics, /healthz and the dashboard websocket feed.
type Server struct {
	port   int
	server *http.Server
	engine *gin.Engine
	hub    *Hub
	log    zerolog.Logger
}

// NewServer creates a new metrics/health/dashboard server.
func NewServer(port int, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	return &Server{
		port: port,
		hub:  NewHub(),
		log:  log.With().Str("component", "metrics_server").Logger(),
	}
}

// Hub returns the dashboard broadcast hub so the tick loop can push events to it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the HTTP server and the dashboard hub's broadcast loop.
func (s *Server) Start() error {
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), GinMiddleware())
	s.engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET"},
		AllowHeaders:     []string{"*"},
		AllowCredentials: false,
	}))

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	s.engine.GET("/dashboard/feed", func(c *gin.Context) {
		s.hub.ServeWS(c.Writer, c.Request)
	})

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.engine,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.hub.Run()

	s.log.Info().Int("port", s.port).Msg("starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("metrics server error")
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info().Msg("shutting down metrics server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}
