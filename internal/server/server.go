package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/insights/internal/logging"
	"github.com/GriffinCanCode/insights/internal/monitoring"
)

// Config contains collector configuration.
type Config struct {
	Host      string
	Port      string
	RateLimit RateLimitConfig
}

// Server is the development ingestion collector.
type Server struct {
	router  *gin.Engine
	http    *http.Server
	logger  *logging.Logger
	metrics *monitoring.Metrics
	hub     *Hub
	sinks   []Sink
}

// NewServer wires the routes. Accepted envelopes go to every sink and to
// live-tail subscribers.
func NewServer(cfg Config, logger *logging.Logger, metrics *monitoring.Metrics, sinks ...Sink) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	if !logging.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		logger:  logger.Named("collector"),
		metrics: metrics,
	}
	s.hub = NewHub(s.logger, metrics)
	s.sinks = append(append([]Sink(nil), sinks...), s.hub)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(s.logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(CORS())
	if cfg.RateLimit.Enabled {
		router.Use(RateLimit(cfg.RateLimit))
	}

	router.GET("/healthz", s.health)
	router.GET("/metrics", metrics.Handler())
	router.POST("/v2/track", s.track)
	router.GET("/v2/live", s.hub.ServeWS)
	s.router = router

	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the live-tail hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Run listens until Shutdown.
func (s *Server) Run() error {
	s.logger.Info("Starting collector", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("collector stopped: %w", err)
	}
	return nil
}

// Shutdown disconnects live subscribers and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"subscribers": s.hub.Subscribers(),
	})
}
